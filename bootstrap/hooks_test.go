package bootstrap

import (
	"context"
	"testing"
	"time"

	"casetrack/core"
	"casetrack/hooks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterBuiltinHooks_NormalizesInput(t *testing.T) {
	d := hooks.NewDispatcher(time.Second, zap.NewNop().Sugar())
	RegisterBuiltinHooks(d)

	out, err := d.DispatchPre(context.Background(),
		hooks.Context{Entity: hooks.EntityCase, Event: hooks.EventCreate},
		&core.CaseCreateRequest{Name: "  Phishing wave  ", SocID: " SOC-9 "})
	require.NoError(t, err, "builtin hooks must not abort")

	req, ok := out.(*core.CaseCreateRequest)
	require.True(t, ok, "payload type should be preserved")
	assert.Equal(t, "Phishing wave", req.Name, "case name should be trimmed")
	assert.Equal(t, "SOC-9", req.SocID, "soc id should be trimmed")

	out, err = d.DispatchPre(context.Background(),
		hooks.Context{Entity: hooks.EntityIOC, Event: hooks.EventCreate},
		&core.IOCCreateRequest{Value: " 1.2.3.4\n", TypeID: 1})
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", out.(*core.IOCCreateRequest).Value, "ioc value should be trimmed")
}

func TestRegisterBuiltinHooks_IgnoresForeignPayloads(t *testing.T) {
	d := hooks.NewDispatcher(time.Second, zap.NewNop().Sugar())
	RegisterBuiltinHooks(d)

	out, err := d.DispatchPre(context.Background(),
		hooks.Context{Entity: hooks.EntityIOC, Event: hooks.EventUpdate},
		"not a request struct")
	require.NoError(t, err, "type mismatch must not abort the operation")
	assert.Equal(t, "not a request struct", out, "payload should pass through untouched")
}

func TestGenerateSecurePassword(t *testing.T) {
	pw, err := GenerateSecurePassword(24)
	require.NoError(t, err)
	assert.Len(t, pw, 24)

	short, err := GenerateSecurePassword(4)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(short), 16, "minimum length should be enforced")

	other, err := GenerateSecurePassword(24)
	require.NoError(t, err)
	assert.NotEqual(t, pw, other, "passwords must not repeat")
}
