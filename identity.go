package lunarys

import "fmt"

// Identity is a sealed interface naming a conversation. A conversation is
// Provisional until the backend assigns it an id, then Confirmed.
// The unexported marker method prevents external implementations.
type Identity interface {
	identity()
	String() string
}

// Provisional identifies a conversation that exists only on the client.
type Provisional struct{}

func (Provisional) identity() {}

func (Provisional) String() string { return "provisional" }

// Confirmed identifies a conversation the backend has assigned an id to.
// ID is always positive.
type Confirmed struct {
	ID int64
}

func (Confirmed) identity() {}

func (c Confirmed) String() string { return fmt.Sprintf("%d", c.ID) }

// Interface compliance checks.
var (
	_ Identity = Provisional{}
	_ Identity = Confirmed{}
)

// IdentityFromWire maps a wire id to an Identity. Non-positive ids are
// provisional.
func IdentityFromWire(id int64) Identity {
	if id <= 0 {
		return Provisional{}
	}
	return Confirmed{ID: id}
}

// ConfirmedID returns the backend id of a confirmed identity.
func ConfirmedID(id Identity) (int64, bool) {
	c, ok := id.(Confirmed)
	if !ok {
		return 0, false
	}
	return c.ID, true
}
