// Package models defines the core data types for the insight engine.
package models

import (
	"encoding/json"
	"time"
)

// Channel identifies where a piece of feedback came from.
type Channel string

// Supported feedback channels.
const (
	ChannelEmail  Channel = "email"
	ChannelChat   Channel = "chat"
	ChannelTicket Channel = "ticket"
	ChannelReview Channel = "review"
	ChannelSocial Channel = "social"
)

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelChat, ChannelTicket, ChannelReview, ChannelSocial:
		return true
	default:
		return false
	}
}

// FeedbackItem is one piece of raw customer feedback as ingested.
// Processed flips to true exactly when the item's Insight is committed;
// the two are written in the same transaction.
type FeedbackItem struct {
	FeedbackID string          `json:"feedback_id"`
	CustomerID string          `json:"customer_id"`
	Channel    Channel         `json:"channel"`
	Timestamp  time.Time       `json:"timestamp"`
	RawText    string          `json:"raw_text"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Processed  bool            `json:"processed"`
}

// IngestFeedbackRequest is the payload for creating a feedback item.
type IngestFeedbackRequest struct {
	FeedbackID string          `json:"feedback_id"  validate:"required,max=128"`
	CustomerID string          `json:"customer_id"  validate:"required,max=128"`
	Channel    Channel         `json:"channel"      validate:"channel"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
	RawText    string          `json:"raw_text"     validate:"required,notblank,max=20000"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}
