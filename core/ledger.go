package core

import (
	"sort"
	"strings"
	"sync"
)

// FeatureLedger records which protections actually fired on the page
// currently loaded in each tab. Entries reset when a tab navigates to a
// different hostname and disappear when the tab closes.
type FeatureLedger struct {
	mu   sync.Mutex
	tabs map[int64]*tabRecord
}

type tabRecord struct {
	hostname string
	features map[string]struct{}
}

func NewFeatureLedger() *FeatureLedger {
	return &FeatureLedger{tabs: make(map[int64]*tabRecord)}
}

// Record notes that feature fired for hostname in tabID. A hostname change
// implies a cross-domain navigation and resets the tab's entry first.
func (l *FeatureLedger) Record(tabID int64, hostname, feature string) {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if feature == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.tabs[tabID]
	if !ok || rec.hostname != hostname {
		rec = &tabRecord{hostname: hostname, features: make(map[string]struct{})}
		l.tabs[tabID] = rec
	}
	rec.features[feature] = struct{}{}
}

// Navigate resets the tab's entry if hostname differs from the recorded
// one. Same-host navigations keep the accumulated features.
func (l *FeatureLedger) Navigate(tabID int64, hostname string) {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.tabs[tabID]
	if ok && rec.hostname == hostname {
		return
	}
	l.tabs[tabID] = &tabRecord{hostname: hostname, features: make(map[string]struct{})}
}

// Features returns the sorted list of features that fired in tabID.
func (l *FeatureLedger) Features(tabID int64) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.tabs[tabID]
	if !ok {
		return []string{}
	}
	features := make([]string, 0, len(rec.features))
	for f := range rec.features {
		features = append(features, f)
	}
	sort.Strings(features)
	return features
}

// DropTab forgets a closed tab.
func (l *FeatureLedger) DropTab(tabID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tabs, tabID)
}
