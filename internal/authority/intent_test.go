package authority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/admitgate/internal/facts"
)

func TestEncodeCompact(t *testing.T) {
	body, err := NewAdmitRequest([]facts.Fact{
		{File: "web/index.html", Line: 7, Added: `<script src="a.js"></script> & "q"`},
	}).Encode()
	require.NoError(t, err)

	want := `{"intent":{"action_type":"GIT_COMMIT_DIFF","payload":{"diff_facts":[` +
		`{"file":"web/index.html","line":7,"added":"<script src=\"a.js\"></script> & \"q\""}]}}}`
	assert.Equal(t, want, string(body))
}

func TestEncodeNilFactsAsEmptyList(t *testing.T) {
	body, err := NewAdmitRequest(nil).Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"intent":{"action_type":"GIT_COMMIT_DIFF","payload":{"diff_facts":[]}}}`, string(body))
}

func TestValidate(t *testing.T) {
	good, err := NewAdmitRequest([]facts.Fact{{File: "a", Line: 1, Added: ""}}).Encode()
	require.NoError(t, err)
	assert.NoError(t, Validate(good))

	empty, err := NewAdmitRequest(nil).Encode()
	require.NoError(t, err)
	assert.NoError(t, Validate(empty))

	zeroLine, err := NewAdmitRequest([]facts.Fact{{File: "a", Line: 0, Added: "x"}}).Encode()
	require.NoError(t, err)
	assert.Error(t, Validate(zeroLine))

	noFile, err := NewAdmitRequest([]facts.Fact{{File: "", Line: 1, Added: "x"}}).Encode()
	require.NoError(t, err)
	assert.Error(t, Validate(noFile))

	assert.Error(t, Validate([]byte(`{"intent":{"action_type":"DEPLOY","payload":{"diff_facts":[]}}}`)))
	assert.Error(t, Validate([]byte(`not json`)))
}
