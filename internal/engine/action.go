package engine

// Action is the closed set of moves a player can make on a hand.
type Action uint8

const (
	ActionHit Action = iota + 1
	ActionStand
	ActionDouble
	ActionSplit
	ActionSurrender
)

var actionNames = map[Action]string{
	ActionHit:       "hit",
	ActionStand:     "stand",
	ActionDouble:    "double",
	ActionSplit:     "split",
	ActionSurrender: "surrender",
}

// ParseAction rejects anything but the five wire names.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, newErr(CodeInvalidAction, "invalid action: %s", s)
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}
