package timeline

import (
	"time"

	"github.com/dghubble/go-twitter/twitter"
	"tweetcollector/pkg/models"
)

// Classify returns the text to store for an entry and whether it is a
// retweet. For a retweet the original status' full text is used, since the
// retweet's own text is truncated.
func Classify(t *twitter.Tweet) (text string, isRetweet bool) {
	if rt := t.RetweetedStatus; rt != nil {
		return fullText(rt), true
	}
	return fullText(t), false
}

func fullText(t *twitter.Tweet) string {
	if t.FullText != "" {
		return t.FullText
	}
	return t.Text
}

// ToModel converts a raw entry into the stored form. An unparseable
// created_at leaves CreatedAt zero.
func ToModel(t *twitter.Tweet, userID int64) models.Tweet {
	text, isRetweet := Classify(t)

	created, err := t.CreatedAtTime()
	if err != nil {
		created = time.Time{}
	}

	return models.Tweet{
		ID:        t.ID,
		CreatedAt: created.UTC(),
		Text:      text,
		UserID:    userID,
		IsRetweet: isRetweet,
		Lang:      t.Lang,
	}
}

// FilterLanguage converts entries and keeps only those in lang. An empty
// lang keeps everything.
func FilterLanguage(raw []twitter.Tweet, userID int64, lang string) []models.Tweet {
	out := make([]models.Tweet, 0, len(raw))
	for i := range raw {
		if lang != "" && raw[i].Lang != lang {
			continue
		}
		out = append(out, ToModel(&raw[i], userID))
	}
	return out
}

// NewestID returns the highest id among raw entries, or 0 for none
func NewestID(raw []twitter.Tweet) int64 {
	var newest int64
	for _, t := range raw {
		if t.ID > newest {
			newest = t.ID
		}
	}
	return newest
}
