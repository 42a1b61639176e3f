// Copyright 2025 The AgentLand Authors
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

package evaluation

import (
	"fmt"
	"math/rand"
	"testing"
)

type sampleItem struct {
	session string
	n       int
}

func makeItems(counts map[string]int) []sampleItem {
	var items []sampleItem
	for _, session := range []string{"a", "b", "c", "d"} {
		for i := 0; i < counts[session]; i++ {
			items = append(items, sampleItem{session: session, n: i})
		}
	}
	return items
}

func TestStratifiedSampleTakesAllWhenUnderLimit(t *testing.T) {
	items := makeItems(map[string]int{"a": 3, "b": 2})
	rng := rand.New(rand.NewSource(1))

	got := StratifiedSample(items, func(it sampleItem) string { return it.session }, 10, rng)
	if len(got) != 5 {
		t.Errorf("StratifiedSample() returned %d items, want all 5", len(got))
	}
}

func TestStratifiedSampleRespectsLimit(t *testing.T) {
	items := makeItems(map[string]int{"a": 20, "b": 20, "c": 20})
	rng := rand.New(rand.NewSource(1))

	got := StratifiedSample(items, func(it sampleItem) string { return it.session }, 12, rng)
	if len(got) != 12 {
		t.Fatalf("StratifiedSample() returned %d items, want 12", len(got))
	}
}

func TestStratifiedSampleSpreadsAcrossSessions(t *testing.T) {
	// One verbose session must not crowd out the small ones.
	items := makeItems(map[string]int{"a": 100, "b": 3, "c": 3})
	rng := rand.New(rand.NewSource(42))

	got := StratifiedSample(items, func(it sampleItem) string { return it.session }, 9, rng)
	if len(got) != 9 {
		t.Fatalf("StratifiedSample() returned %d items, want 9", len(got))
	}

	perSession := map[string]int{}
	for _, it := range got {
		perSession[it.session]++
	}
	if perSession["b"] != 3 || perSession["c"] != 3 {
		t.Errorf("per-session counts = %v, want the small sessions fully represented", perSession)
	}
	if perSession["a"] != 3 {
		t.Errorf("perSession[a] = %d, want 3 to fill the remaining budget", perSession["a"])
	}
}

func TestStratifiedSampleNoDuplicates(t *testing.T) {
	items := makeItems(map[string]int{"a": 10, "b": 1, "c": 1})
	rng := rand.New(rand.NewSource(7))

	got := StratifiedSample(items, func(it sampleItem) string { return it.session }, 8, rng)
	seen := map[string]bool{}
	for _, it := range got {
		key := fmt.Sprintf("%s/%d", it.session, it.n)
		if seen[key] {
			t.Fatalf("StratifiedSample() returned duplicate item %s", key)
		}
		seen[key] = true
	}
}

func TestStratifiedSampleEmptyAndZeroLimit(t *testing.T) {
	if got := StratifiedSample(nil, func(sampleItem) string { return "" }, 5, nil); got != nil {
		t.Errorf("StratifiedSample(nil items) = %v, want nil", got)
	}
	items := makeItems(map[string]int{"a": 3})
	if got := StratifiedSample(items, func(it sampleItem) string { return it.session }, 0, nil); got != nil {
		t.Errorf("StratifiedSample(limit 0) = %v, want nil", got)
	}
}
