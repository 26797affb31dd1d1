package rbac

import "context"

type ctxKey int

const (
	ctxKeyRole ctxKey = iota
	ctxKeySubject
	ctxKeyDisplayName
	ctxKeyAssessmentScope
)

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

func RoleFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyRole).(string); ok {
		return s
	}
	return ""
}

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySubject, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeySubject).(string); ok {
		return s
	}
	return ""
}

func WithDisplayName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKeyDisplayName, name)
}

func DisplayNameFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyDisplayName).(string); ok {
		return s
	}
	return ""
}

// WithAssessmentScope limits a reviewer session to a single assessment.
func WithAssessmentScope(ctx context.Context, assessmentID string) context.Context {
	return context.WithValue(ctx, ctxKeyAssessmentScope, assessmentID)
}

func AssessmentScopeFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyAssessmentScope).(string); ok {
		return s
	}
	return ""
}
