// Package positions maps the 1-based numbers shown to a user onto the
// positions listed for them most recently.
package positions

import (
	"fmt"

	"liquidityPilot/internal/kv"
	"liquidityPilot/internal/lperr"
	"liquidityPilot/internal/model"
)

var (
	ErrNoListing    = lperr.New(lperr.CodePrecondition, "no position list yet, use /positions first")
	ErrOrdinalRange = lperr.New(lperr.CodePrecondition, "invalid position number")
	ErrEmptyListing = lperr.New(lperr.CodePrecondition, "you have no open positions")
)

// List is an immutable ordered listing.
type List struct {
	items []model.Position
}

func NewList(items []model.Position) List {
	cp := make([]model.Position, len(items))
	copy(cp, items)
	return List{items: cp}
}

func (l List) Len() int {
	return len(l.items)
}

// Items returns a copy of the listing in display order.
func (l List) Items() []model.Position {
	cp := make([]model.Position, len(l.items))
	copy(cp, l.items)
	return cp
}

// At resolves a 1-based ordinal.
func (l List) At(ordinal int) (model.Position, error) {
	if len(l.items) == 0 {
		return model.Position{}, ErrEmptyListing
	}
	if ordinal < 1 || ordinal > len(l.items) {
		msg := fmt.Sprintf("invalid position number %d, choose 1-%d", ordinal, len(l.items))
		return model.Position{}, lperr.Wrap(lperr.CodePrecondition, msg, ErrOrdinalRange)
	}
	return l.items[ordinal-1], nil
}

// Index holds the most recent listing per user. A new listing fully
// supersedes the previous one.
type Index struct {
	m *kv.Map[List]
}

func NewIndex() *Index {
	return &Index{m: kv.New[List](kv.DefaultShards)}
}

func (idx *Index) Replace(userID int64, items []model.Position) List {
	list := NewList(items)
	idx.m.Put(userID, list)
	return list
}

func (idx *Index) Current(userID int64) (List, bool) {
	return idx.m.Get(userID)
}

// Resolve maps an ordinal onto the current listing. Repeated calls against
// the same listing return the same position.
func (idx *Index) Resolve(userID int64, ordinal int) (model.Position, error) {
	list, ok := idx.m.Get(userID)
	if !ok {
		return model.Position{}, ErrNoListing
	}
	return list.At(ordinal)
}

func (idx *Index) Forget(userID int64) {
	idx.m.Delete(userID)
}
