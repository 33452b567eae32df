package middleware

import "context"

type contextKey string

const (
	ctxRole       contextKey = "actor_role"
	ctxCustomerID contextKey = "customer_id"
	ctxCleanerID  contextKey = "cleaner_id"
	ctxCompanyID  contextKey = "company_id"
)

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func CustomerIDFromContext(ctx context.Context) int64 {
	return int64FromContext(ctx, ctxCustomerID)
}

func CleanerIDFromContext(ctx context.Context) int64 {
	return int64FromContext(ctx, ctxCleanerID)
}

func CompanyIDFromContext(ctx context.Context) int64 {
	return int64FromContext(ctx, ctxCompanyID)
}

// WithCustomerID injects the customer identifier, used by tests and tooling.
func WithCustomerID(ctx context.Context, customerID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCustomerID, customerID)
}

// WithCleanerID injects the cleaner identifier.
func WithCleanerID(ctx context.Context, cleanerID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCleanerID, cleanerID)
}

// WithCompanyID injects the company identifier.
func WithCompanyID(ctx context.Context, companyID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCompanyID, companyID)
}

// WithRole injects the actor role.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

func int64FromContext(ctx context.Context, key contextKey) int64 {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(key).(int64); ok {
		return v
	}
	return 0
}
