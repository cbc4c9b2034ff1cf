package jobs

import (
	"testing"

	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
)

func TestJobAttrs(t *testing.T) {
	t.Run("includes feedback id from args", func(t *testing.T) {
		job := &rivertype.JobRow{
			ID: 7, Kind: "analyze_feedback", Queue: "analysis", Attempt: 2, MaxAttempts: 3,
			EncodedArgs: []byte(`{"feedback_id":42,"force":false}`),
		}

		attrs := jobAttrs(job)

		assert.Contains(t, attrs, "feedback_id")
		assert.Equal(t, int64(42), attrs[len(attrs)-1])
	})

	t.Run("omits feedback id when args have none", func(t *testing.T) {
		job := &rivertype.JobRow{ID: 8, Kind: "other", EncodedArgs: []byte(`{}`)}

		assert.NotContains(t, jobAttrs(job), "feedback_id")
	})

	t.Run("tolerates undecodable args", func(t *testing.T) {
		job := &rivertype.JobRow{ID: 9, Kind: "other", EncodedArgs: []byte(`not json`)}

		assert.Len(t, jobAttrs(job), 10)
	})
}
