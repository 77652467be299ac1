package dispatch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerCounts(t *testing.T) {
	ledger := NewLedger(5)

	ledger.Append(Outcome{Email: "a@x.com", Status: StatusSent})
	ledger.Append(Outcome{Email: "b@x.com", Status: StatusTransientFailure, Code: 421, Err: "try later"})
	ledger.Append(Outcome{Email: "c@x.com", Status: StatusSent})
	ledger.Append(Outcome{Email: "d@x.com", Status: StatusSkipped, Err: "context canceled"})
	ledger.Append(Outcome{Email: "e@x.com", Status: StatusPermanentFailure, Code: 550, Err: "no such user"})

	assert.Equal(t, 2, ledger.Sent())
	assert.Equal(t, 2, ledger.Failed())
	assert.Equal(t, 1, ledger.Skipped())
	assert.Len(t, ledger.Outcomes(), 5)
}

func TestLedgerFailuresKeepOccurrenceOrder(t *testing.T) {
	ledger := NewLedger(4)

	ledger.Append(Outcome{Email: "b@x.com", Status: StatusTemplateFailure, Err: "render subject"})
	ledger.Append(Outcome{Email: "a@x.com", Status: StatusSent})
	ledger.Append(Outcome{Email: "c@x.com", Status: StatusBatchFailure, Err: "connect refused"})

	failures := ledger.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "b@x.com", failures[0].Email)
	assert.Equal(t, "c@x.com", failures[1].Email)
}

func TestLedgerWriteFailuresCSV(t *testing.T) {
	ledger := NewLedger(3)
	ledger.Append(Outcome{Email: "a@x.com", Status: StatusSent})
	ledger.Append(Outcome{Status: StatusPermanentFailure, Err: "missing recipient email"})
	ledger.Append(Outcome{Email: "c@x.com", Status: StatusPermanentFailure, Code: 550, Err: "no such user"})

	var buf bytes.Buffer
	require.NoError(t, ledger.WriteFailures(&buf))

	want := "email,code,error\n" +
		",,missing recipient email\n" +
		"c@x.com,550,no such user\n"
	assert.Equal(t, want, buf.String())
}
