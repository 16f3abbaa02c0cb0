package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Ameer8055/PIQUI-sub000/internal/store"
)

// History is the read side of battle persistence.
type History interface {
	ListUserBattles(ctx context.Context, userID string, limit int) ([]store.BattleRecord, error)
}

type battleSummaryJSON struct {
	BattleID     string            `json:"battle_id"`
	Subject      string            `json:"subject"`
	WinnerUserID string            `json:"winner_user_id,omitempty"`
	IsTie        bool              `json:"is_tie"`
	Forfeit      bool              `json:"forfeit"`
	DurationSec  int               `json:"duration_sec"`
	PlayedAt     string            `json:"played_at"`
	Scores       []participantJSON `json:"scores"`
}

type participantJSON struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
}

// ListBattles serves a user's past battle summaries for the profile UI.
func ListBattles(h History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if userID == "" {
			http.Error(w, "missing user id", http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		recs, err := h.ListUserBattles(r.Context(), userID, limit)
		if err != nil {
			http.Error(w, "failed to load battle history", http.StatusInternalServerError)
			return
		}

		out := make([]battleSummaryJSON, 0, len(recs))
		for _, rec := range recs {
			s := battleSummaryJSON{
				BattleID:     rec.ID,
				Subject:      rec.Subject,
				WinnerUserID: rec.WinnerUserID,
				IsTie:        rec.IsTie,
				Forfeit:      rec.Forfeit,
				DurationSec:  rec.DurationSec,
				PlayedAt:     rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			}
			for _, p := range rec.Participants {
				s.Scores = append(s.Scores, participantJSON{
					UserID:      p.UserID,
					DisplayName: p.DisplayName,
					Score:       p.Score,
				})
			}
			out = append(out, s)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
