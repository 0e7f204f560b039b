// Package authorization enforces role permissions for admin-only billing
// operations. The caller identity is already authenticated upstream; this
// layer only answers "may this role do that".
package authorization

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/actor"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectBillingConfig = "billing_config"
	ObjectInvoice       = "invoice"
	ObjectMailLog       = "mail_log"
	ObjectReminder      = "reminder"
	ObjectReport        = "report"
)

const (
	ActionRead      = "read"
	ActionUpdate    = "update"
	ActionGenerate  = "generate"
	ActionMarkPaid  = "mark_paid"
	ActionCancel    = "cancel"
	ActionSendEmail = "send_email"
	ActionRetry     = "retry"
	ActionRunSweep  = "run_sweep"
	ActionDownload  = "download"
)

var adminPolicies = [][2]string{
	{ObjectBillingConfig, ActionRead},
	{ObjectBillingConfig, ActionUpdate},
	{ObjectInvoice, ActionRead},
	{ObjectInvoice, ActionUpdate},
	{ObjectInvoice, ActionGenerate},
	{ObjectInvoice, ActionMarkPaid},
	{ObjectInvoice, ActionCancel},
	{ObjectInvoice, ActionSendEmail},
	{ObjectInvoice, ActionDownload},
	{ObjectMailLog, ActionRead},
	{ObjectMailLog, ActionRetry},
	{ObjectReminder, ActionRunSweep},
	{ObjectReport, ActionRead},
}

type Service interface {
	// Require rejects with ErrPermissionDenied unless the context actor's
	// role is allowed to perform action on object.
	Require(ctx context.Context, object, action string) error
}

var ErrPermissionDenied = fmt.Errorf("permission_denied")

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type service struct {
	enforcer *casbin.Enforcer
	log      *zap.Logger
}

func NewService(p Params) (Service, error) {
	m, err := casbinmodel.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	adapter, err := gormadapter.NewAdapterByDB(p.DB)
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}

	for _, policy := range adminPolicies {
		if _, err := enforcer.AddPolicy(actor.RoleAdmin, policy[0], policy[1]); err != nil {
			return nil, err
		}
	}

	return &service{enforcer: enforcer, log: p.Log.Named("authorization")}, nil
}

func (s *service) Require(ctx context.Context, object, action string) error {
	who, ok := actor.FromContext(ctx)
	if !ok || who.ID == "" {
		return ErrPermissionDenied
	}
	// Scheduled jobs act with full privileges.
	if who.Role == actor.RoleSystem {
		return nil
	}

	allowed, err := s.enforcer.Enforce(who.Role, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("permission denied",
			zap.String("actor", who.ID),
			zap.String("role", who.Role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrPermissionDenied
	}
	return nil
}

var Module = fx.Module("authorization",
	fx.Provide(NewService),
)
