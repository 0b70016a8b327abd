package story

// MapNode is one stage as the client draws it.
type MapNode struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Kind     StageKind `json:"kind"`
	Status   Status    `json:"status"`
	Position Position  `json:"position"`
	Edges    []string  `json:"edges,omitempty"` // required stage ids
	Choice   string    `json:"choice,omitempty"`
	Choices  []Choice  `json:"choices,omitempty"`
	Recruit  []string  `json:"recruit,omitempty"`
}

// MapView lists visible stages in campaign order. Hidden stages appear
// once they are available, and stay after completion.
func (e *Engine) MapView(p Progress) []MapNode {
	nodes := make([]MapNode, 0, len(e.Campaign.Stages))
	for _, s := range e.Campaign.Stages {
		st := e.status(p, s)
		if s.Hidden && st == StatusLocked {
			continue
		}
		n := MapNode{
			ID:       s.ID,
			Title:    s.Title,
			Kind:     s.Kind,
			Status:   st,
			Position: s.Position,
			Edges:    s.Requires,
			Choice:   p.Choices[s.ID],
		}
		switch s.Kind {
		case KindChoice:
			n.Choices = s.Choices
		case KindRecruit:
			n.Recruit = s.Recruit
		}
		nodes = append(nodes, n)
	}
	return nodes
}
