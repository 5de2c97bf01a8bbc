package cart

import (
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Transition is one state change of the store. The set is closed; reduce
// handles every variant.
type Transition interface {
	transition()
}

type FetchStarted struct{ Seq uint64 }

type CartFetched struct {
	Seq  uint64
	Cart domain.Cart
}

// FetchFailed keeps the previous cart for display and records the error.
type FetchFailed struct {
	Seq uint64
	Err error
}

type ItemAdded struct {
	Seq  uint64
	Cart domain.Cart
}

type ItemUpdated struct {
	Seq  uint64
	Cart domain.Cart
}

type ItemRemoved struct {
	Seq  uint64
	Cart domain.Cart
}

type Cleared struct {
	Seq  uint64
	Cart domain.Cart
}

// SignedOut drops everything, including responses still in flight.
type SignedOut struct{ Seq uint64 }

func (FetchStarted) transition() {}
func (CartFetched) transition()  {}
func (FetchFailed) transition()  {}
func (ItemAdded) transition()    {}
func (ItemUpdated) transition()  {}
func (ItemRemoved) transition()  {}
func (Cleared) transition()      {}
func (SignedOut) transition()    {}

// State is what views render.
type State struct {
	Cart     domain.Cart
	Loading  bool
	Loaded   bool  // at least one snapshot adopted since sign-in
	SignedIn bool  // false renders the signed-out view
	Err      error // last fetch failure, cleared by the next adopted snapshot
}

func (s State) ItemCount() int {
	return s.Cart.ItemCount()
}

func (s State) Total() decimal.Decimal {
	return s.Cart.DisplayTotal()
}

type state struct {
	State
	applied  uint64 // newest request whose outcome was adopted
	fetching uint64 // newest fetch in flight, zero when idle
}

// reduce returns the next state and whether anything changed. Outcomes of
// requests older than the last adopted one are discarded.
func reduce(st state, t Transition) (state, bool) {
	switch t := t.(type) {
	case FetchStarted:
		if t.Seq < st.applied {
			return st, false
		}
		st.fetching = t.Seq
		st.Loading = true
		st.SignedIn = true
		return st, true
	case CartFetched:
		return adopt(st, t.Seq, t.Cart)
	case FetchFailed:
		if t.Seq < st.applied || t.Seq < st.fetching {
			return st, false
		}
		st.fetching = 0
		st.Loading = false
		st.Err = t.Err
		return st, true
	case ItemAdded:
		return adopt(st, t.Seq, t.Cart)
	case ItemUpdated:
		return adopt(st, t.Seq, t.Cart)
	case ItemRemoved:
		return adopt(st, t.Seq, t.Cart)
	case Cleared:
		return adopt(st, t.Seq, t.Cart)
	case SignedOut:
		return state{applied: t.Seq}, true
	default:
		panic(fmt.Sprintf("cart: unhandled transition %T", t))
	}
}

func adopt(st state, seq uint64, c domain.Cart) (state, bool) {
	if seq < st.applied {
		return st, false
	}
	st.applied = seq
	st.Cart = c.Clone()
	st.Loaded = true
	st.SignedIn = true
	st.Err = nil
	if st.fetching != 0 && st.fetching <= seq {
		st.fetching = 0
		st.Loading = false
	}
	return st, true
}
