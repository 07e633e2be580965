package service

import (
	"errors"
	"osian_backend/internal/model"
	"osian_backend/internal/repository"
	"osian_backend/internal/util"
	"osian_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserFilter = repository.UserFilter

type UserAdminStore interface {
	FindByID(id uint) (*model.User, error)
	List(filter UserFilter, page, limit int) ([]model.User, int64, error)
	SetDisabled(id uint, disabled bool) error
}

// UserService 管理员对答题用户的管理
type UserService struct {
	Store UserAdminStore
}

func NewUserService(store UserAdminStore) *UserService {
	return &UserService{Store: store}
}

func (s *UserService) GetUsers(page, limit int, filter UserFilter) ([]model.User, int64, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.Store.List(filter, page, limit)
}

func (s *UserService) GetUserByID(id uint) (*model.User, error) {
	user, err := s.Store.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}

// DisableUser 禁用后已签发的 token 仍然有效，直到过期；登录会被拒绝
func (s *UserService) DisableUser(operatorID, id uint, disable bool) error {
	if operatorID == id && disable {
		return util.ErrPermissionDenied
	}
	if _, err := s.GetUserByID(id); err != nil {
		return err
	}
	if err := s.Store.SetDisabled(id, disable); err != nil {
		return err
	}
	logger.Log.Info("user status changed",
		zap.Uint("operatorId", operatorID),
		zap.Uint("userId", id),
		zap.Bool("disabled", disable),
	)
	return nil
}
