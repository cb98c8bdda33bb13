package bootstrap

import (
	"context"
	"strings"

	"casetrack/core"
	"casetrack/hooks"
)

// RegisterBuiltinHooks attaches the stock lifecycle hooks the platform ships
// with. They run before any operator-registered hooks (priority 10) and only
// normalize input; they never abort an operation.
func RegisterBuiltinHooks(d *hooks.Dispatcher) {
	d.RegisterPre(hooks.EntityCase, hooks.EventCreate, 10, "trim-case-fields", trimCaseFields)
	d.RegisterPre(hooks.EntityIOC, hooks.EventCreate, 10, "normalize-ioc-value", normalizeIOCValue)
	d.RegisterPre(hooks.EntityIOC, hooks.EventUpdate, 10, "normalize-ioc-value", normalizeIOCValueUpdate)
}

// trimCaseFields strips stray whitespace from operator-typed case fields.
func trimCaseFields(_ context.Context, _ hooks.Context, payload any) (any, error) {
	req, ok := payload.(*core.CaseCreateRequest)
	if !ok {
		return nil, nil
	}
	req.Name = strings.TrimSpace(req.Name)
	req.SocID = strings.TrimSpace(req.SocID)
	req.Classification = strings.TrimSpace(req.Classification)
	return req, nil
}

// normalizeIOCValue trims indicator values so "1.2.3.4 " and "1.2.3.4" are the
// same observable.
func normalizeIOCValue(_ context.Context, _ hooks.Context, payload any) (any, error) {
	req, ok := payload.(*core.IOCCreateRequest)
	if !ok {
		return nil, nil
	}
	req.Value = strings.TrimSpace(req.Value)
	return req, nil
}

func normalizeIOCValueUpdate(_ context.Context, _ hooks.Context, payload any) (any, error) {
	req, ok := payload.(*core.IOCUpdateRequest)
	if !ok || req.Value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*req.Value)
	req.Value = &trimmed
	return req, nil
}
