package game

// Match wraps the pure rules functions around one mutable board. Local and
// remote moves both land here, so there is never a second writer path.
type Match struct {
	state State
}

func NewMatch() *Match {
	return &Match{state: NewState()}
}

func (m *Match) Apply(cell int) error {
	next, err := Apply(m.state, cell)
	if err != nil {
		return err
	}
	m.state = next
	return nil
}

func (m *Match) CurrentPlayer() Player { return CurrentPlayer(m.state) }

func (m *Match) Status() Status { return GetStatus(m.state) }

func (m *Match) IsCellEmpty(cell int) bool { return IsCellEmpty(m.state, cell) }

// State returns a copy; State is a value type.
func (m *Match) State() State { return m.state }

func (m *Match) Board() Board { return m.state.Board }

func (m *Match) Reset() { m.state = NewState() }
