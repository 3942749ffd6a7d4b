package telegram

import "sync"

// chatState remembers per-chat choices for the lifetime of the process.
type chatState struct {
	engines sync.Map // chatID -> engine name
}

func (s *chatState) setEngine(chatID int64, name string) { s.engines.Store(chatID, name) }

func (s *chatState) engine(chatID int64) string {
	if v, ok := s.engines.Load(chatID); ok {
		if name, _ := v.(string); name != "" {
			return name
		}
	}
	return ""
}
