// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package events

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/etalazz/rec-engine/internal/recengine/eventtypes"
)

// seqList is an append-only, mutex-protected list of sequence numbers for
// one secondary-index key. Lazily created the first time a key is seen,
// mirroring the teacher's managedVSA: try a plain Load first (no
// allocation), only allocate-and-publish on a miss.
type seqList struct {
	mu  sync.Mutex
	ids []uint64
}

func (l *seqList) append(seq uint64) {
	l.mu.Lock()
	l.ids = append(l.ids, seq)
	l.mu.Unlock()
}

func (l *seqList) snapshot() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uint64, len(l.ids))
	copy(out, l.ids)
	return out
}

func getOrCreateList(m *sync.Map, key string) *seqList {
	if v, ok := m.Load(key); ok {
		return v.(*seqList)
	}
	fresh := &seqList{}
	actual, _ := m.LoadOrStore(key, fresh)
	return actual.(*seqList)
}

// MemoryStore is the default, in-process implementation of the Event Store
// Facade. It is append-only: events are never mutated or removed, so every
// secondary index can hold stable sequence numbers rather than re-scanning
// on write.
type MemoryStore struct {
	rowCap int

	mu   sync.RWMutex
	all  []eventtypes.Event // index i holds the event with Seq==uint64(i)
	next uint64

	userIdx    sync.Map // userID -> *seqList
	itemIdx    sync.Map // itemID -> *seqList
	typeIdx    sync.Map // Type -> *seqList
	variantIdx sync.Map // variant -> *seqList

	appends atomic.Int64
}

// NewMemoryStore constructs a store with the given row cap; rowCap<=0 uses
// DefaultRowCap.
func NewMemoryStore(rowCap int) *MemoryStore {
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}
	return &MemoryStore{rowCap: rowCap}
}

// Append is strictly additive and durable on return: the event is visible
// to subsequent Range/aggregate calls before Append returns.
func (s *MemoryStore) Append(_ context.Context, e eventtypes.Event) error {
	s.mu.Lock()
	seq := s.next
	s.next++
	e.Seq = seq
	s.all = append(s.all, e)
	s.mu.Unlock()

	if e.UserID != "" {
		getOrCreateList(&s.userIdx, e.UserID).append(seq)
	}
	itemID := e.ItemID
	if itemID == "" {
		itemID = e.Payload.ItemID
	}
	if itemID != "" {
		getOrCreateList(&s.itemIdx, itemID).append(seq)
	}
	getOrCreateList(&s.typeIdx, string(e.Type)).append(seq)
	if e.Payload.Variant != "" {
		getOrCreateList(&s.variantIdx, e.Payload.Variant).append(seq)
	}
	s.appends.Add(1)
	return nil
}

// candidateSeqs picks the most selective available index for the filter,
// falling back to a full scan when no indexed dimension is constrained.
func (s *MemoryStore) candidateSeqs(f Filter) ([]uint64, bool) {
	switch {
	case f.UserID != "":
		if v, ok := s.userIdx.Load(f.UserID); ok {
			return v.(*seqList).snapshot(), true
		}
		return nil, true
	case f.ItemID != "":
		if v, ok := s.itemIdx.Load(f.ItemID); ok {
			return v.(*seqList).snapshot(), true
		}
		return nil, true
	case f.Type != "":
		if v, ok := s.typeIdx.Load(string(f.Type)); ok {
			return v.(*seqList).snapshot(), true
		}
		return nil, true
	case f.Variant != "":
		if v, ok := s.variantIdx.Load(f.Variant); ok {
			return v.(*seqList).snapshot(), true
		}
		return nil, true
	default:
		return nil, false
	}
}

func (s *MemoryStore) eventAt(seq uint64) (eventtypes.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if seq >= uint64(len(s.all)) {
		return eventtypes.Event{}, false
	}
	return s.all[seq], true
}

// Range returns events with ts in [from,to] matching filter, sorted
// ascending by ts (ties broken by Seq, i.e. insertion order), capped at
// rowCap with Partial=true if truncated.
func (s *MemoryStore) Range(_ context.Context, from, to time.Time, filter Filter) (RangeResult, error) {
	var candidates []eventtypes.Event

	if seqs, indexed := s.candidateSeqs(filter); indexed {
		for _, seq := range seqs {
			e, ok := s.eventAt(seq)
			if !ok {
				continue
			}
			if e.Ts.Before(from) || e.Ts.After(to) {
				continue
			}
			if !filter.matches(e) {
				continue
			}
			candidates = append(candidates, e)
		}
	} else {
		s.mu.RLock()
		snapshot := make([]eventtypes.Event, len(s.all))
		copy(snapshot, s.all)
		s.mu.RUnlock()
		for _, e := range snapshot {
			if e.Ts.Before(from) || e.Ts.After(to) {
				continue
			}
			if !filter.matches(e) {
				continue
			}
			candidates = append(candidates, e)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Ts.Equal(candidates[j].Ts) {
			return candidates[i].Seq < candidates[j].Seq
		}
		return candidates[i].Ts.Before(candidates[j].Ts)
	})

	partial := false
	if len(candidates) > s.rowCap {
		candidates = candidates[:s.rowCap]
		partial = true
	}
	return RangeResult{Events: candidates, Partial: partial}, nil
}
