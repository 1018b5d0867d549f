package domain

import "github.com/google/uuid"

const topicPrefix = "board."

// Topic returns the broker topic for a board. Publishers and subscribers must
// agree on it byte for byte, so the format never changes.
func Topic(boardID uuid.UUID) string {
	return topicPrefix + boardID.String()
}
