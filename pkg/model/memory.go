package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// UncategorizedTag is the sentinel category of a memory nobody could classify
const UncategorizedTag = "uncategorized"

type MemoryID string

// NewMemoryID generates a new short MemoryID from a random UUID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String()[:8])
}

// Memory is a curated fragment as it is persisted in the fragment log
type Memory struct {
	ID         MemoryID  `json:"id" firestore:"id"`
	Content    string    `json:"content" firestore:"content"`
	Score      float64   `json:"score" firestore:"score"`
	Timestamp  time.Time `json:"timestamp" firestore:"timestamp"`
	Categories []string  `json:"categories" firestore:"categories"`
	Reason     string    `json:"reason" firestore:"reason"`
}

// HasCategory reports whether the memory is tagged with label
func (m *Memory) HasCategory(label string) bool {
	for _, c := range m.Categories {
		if c == label {
			return true
		}
	}
	return false
}

// RoundScore rounds a librarian score to two decimals
func RoundScore(score float64) float64 {
	return math.Round(score*100) / 100
}
