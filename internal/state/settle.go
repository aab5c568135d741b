package state

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Run executes cmd outside a tea.Program. Batches are expanded and their
// children run concurrently. It returns the resulting messages in completion order.
func Run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	}

	var (
		mu  sync.Mutex
		out []tea.Msg
		wg  sync.WaitGroup
	)
	for _, c := range batch {
		wg.Add(1)
		go func(c tea.Cmd) {
			defer wg.Done()
			msgs := Run(c)
			mu.Lock()
			out = append(out, msgs...)
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return out
}

// Settle runs cmd to completion and applies every result to the store.
func (s *Store) Settle(cmd tea.Cmd) {
	for _, msg := range Run(cmd) {
		s.Apply(msg)
	}
}
