package engagement

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zfogg/showcase/backend/internal/models"
)

// MaxMessageLength is the longest endorsement message accepted, in characters
const MaxMessageLength = 500

// ReasonCode identifies why an action was not recorded
type ReasonCode string

const (
	ReasonUnauthenticated ReasonCode = "unauthenticated"
	ReasonInvalidPost     ReasonCode = "invalid_post"
	ReasonPostNotFound    ReasonCode = "post_not_found"
	ReasonSelfEndorsement ReasonCode = "self_endorsement"
	ReasonEmptyMessage    ReasonCode = "empty_message"
	ReasonMessageTooLong  ReasonCode = "message_too_long"
	ReasonInvalidPlatform ReasonCode = "invalid_platform"
	ReasonViewCooldown    ReasonCode = "view_cooldown"
	ReasonRateLimited     ReasonCode = "rate_limited"
	ReasonAlreadyEndorsed ReasonCode = "already_endorsed"
)

// Rejection is a normal, user-facing outcome. It carries a message the app can
// show as-is and, for cooldowns and limits, how long to wait.
type Rejection struct {
	Reason     ReasonCode    `json:"reason"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"-"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

func reject(reason ReasonCode, message string) *Rejection {
	return &Rejection{Reason: reason, Message: message}
}

// Action is a raw request to record engagement, before any checks
type Action struct {
	Kind     models.EventKind
	PostID   string
	ActorID  string
	Platform string // shares
	Message  string // endorsements
}

// Validate applies the stateless rules to an action. postOwnerID may be empty
// when the owner has not been resolved; the self-endorsement rule is then skipped.
// It returns nil when the action may proceed to the guard.
func Validate(action Action, postOwnerID string) *Rejection {
	if action.ActorID == "" {
		return reject(ReasonUnauthenticated, "You need to be signed in to do that")
	}
	if strings.TrimSpace(action.PostID) == "" {
		return reject(ReasonInvalidPost, "That post doesn't exist")
	}

	switch action.Kind {
	case models.KindShare:
		if _, ok := models.ParsePlatform(action.Platform); !ok {
			return reject(ReasonInvalidPlatform, "Unknown share platform")
		}

	case models.KindEndorsement:
		if postOwnerID != "" && action.ActorID == postOwnerID {
			return reject(ReasonSelfEndorsement, "You can't endorse your own work")
		}
		message := strings.TrimSpace(action.Message)
		if message == "" {
			return reject(ReasonEmptyMessage, "Please write a short endorsement message")
		}
		if utf8.RuneCountInString(message) > MaxMessageLength {
			return reject(ReasonMessageTooLong, fmt.Sprintf("Endorsements can be at most %d characters", MaxMessageLength))
		}
	}

	return nil
}
