package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAction(t *testing.T) {
	before := testutil.ToFloat64(APIActionsTotal.WithLabelValues("register", "email_exists"))

	RecordAction("register", "email_exists")
	RecordAction("register", "email_exists")

	after := testutil.ToFloat64(APIActionsTotal.WithLabelValues("register", "email_exists"))
	assert.Equal(t, before+2, after)
}
