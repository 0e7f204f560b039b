package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/actor"
	auditdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
	}
}

func (s *Service) AuditLog(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
	who, _ := actor.FromContext(ctx)
	if who.ID == "" {
		who = actor.System()
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorID:    who.ID,
		ActorRole:  who.Role,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   datatypes.JSONMap(metadata),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Warn("audit write failed",
			zap.String("action", action),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
	}
}
