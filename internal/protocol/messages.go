package protocol

import "encoding/json"

// MessageType identifies the kind of message sent over the wire.
type MessageType string

const (
	// Server -> Client
	MsgQueued         MessageType = "queued"
	MsgQueueUpdate    MessageType = "queue_update"
	MsgQueueLeft      MessageType = "queue_left"
	MsgMatched        MessageType = "matched"
	MsgStarted        MessageType = "started"
	MsgQuestion       MessageType = "question"
	MsgPlayerAnswered MessageType = "player_answered"
	MsgQuestionResult MessageType = "question_result"
	MsgFinished       MessageType = "finished"
	MsgError          MessageType = "error"

	// Client -> Server
	MsgJoinQueue  MessageType = "join_queue"
	MsgLeaveQueue MessageType = "leave_queue"
	MsgAnswer     MessageType = "answer"
	MsgLeave      MessageType = "leave"
)

// Error codes carried in ErrorPayload.Code.
const (
	CodeAlreadyQueued   = "AlreadyQueued"
	CodeNotInQueue      = "NotInQueue"
	CodeSubjectRequired = "SubjectRequired"
	CodeBattleNotFound  = "BattleNotFound"
	CodeTooLate         = "TooLate"
	CodeBadMessage      = "BadMessage"
	CodeInternal        = "Internal"
)

// Envelope is the top-level wire format for all messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Pack builds an envelope around a payload struct. A marshal failure
// here is a programming error, so payloads that can't be encoded
// become an empty payload rather than a panic.
func Pack(t MessageType, payload any) Envelope {
	if payload == nil {
		return Envelope{Type: t}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{Type: t}
	}
	return Envelope{Type: t, Payload: raw}
}

// Decode unmarshals the envelope payload into dst.
func (e Envelope) Decode(dst any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, dst)
}

// --- Server -> Client payloads ---

// QueuePayload serves both "queued" and "queue_update"; position is 1-based.
type QueuePayload struct {
	Position int `json:"position"`
	Size     int `json:"size"`
}

// OpponentInfo identifies the other player from the receiver's perspective.
type OpponentInfo struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type MatchedPayload struct {
	BattleID      string       `json:"battle_id"`
	Subject       string       `json:"subject"`
	Opponent      OpponentInfo `json:"opponent"`
	QuestionCount int          `json:"question_count"`
	StartsInSec   int          `json:"starts_in_sec"`
}

type QuestionPayload struct {
	Sequence     int      `json:"sequence"` // 0-based question index
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	TimeLimitSec int      `json:"time_limit_sec"`
}

// PlayerAnsweredPayload is a progress ping only: Score is the answering
// player's cumulative total from before the current question, so it
// never leaks correctness.
type PlayerAnsweredPayload struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

type PlayerResult struct {
	UserID    string `json:"user_id"`
	IsCorrect bool   `json:"is_correct"`
	Score     int    `json:"score"` // cumulative total after this question
}

type QuestionResultPayload struct {
	CorrectAnswerIndex int            `json:"correct_answer_index"`
	Players            []PlayerResult `json:"players"`
}

type FinishedPayload struct {
	BattleID      string       `json:"battle_id"`
	WinnerUserID  string       `json:"winner_user_id,omitempty"` // empty on tie
	IsTie         bool         `json:"is_tie"`
	Forfeit       bool         `json:"forfeit"`
	YourScore     int          `json:"your_score"`
	OpponentScore int          `json:"opponent_score"`
	DurationSec   int          `json:"duration_sec"`
	Opponent      OpponentInfo `json:"opponent"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Client -> Server payloads ---

type JoinQueuePayload struct {
	Subject string `json:"subject"`
}

type AnswerPayload struct {
	AnswerIndex int `json:"answer_index"`
}
