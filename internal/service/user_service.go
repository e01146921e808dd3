package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/helpyt/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserInvalidInput   = errors.New("invalid user input")
)

// UserService 负责注册、登录与账户设置。
type UserService struct {
	db *gorm.DB
}

// NewUserService 构造 UserService。
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// Register 创建普通用户，密码使用 bcrypt 保存。
func (s *UserService) Register(ctx context.Context, email, password, name string) (*db.User, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	user := db.User{Email: email, Name: name, Password: string(hashed), Role: db.RoleUser}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Authenticate 校验邮箱与密码，失败统一返回 ErrInvalidCredentials。
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).Where("email = ?", db.NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get 按主键查询用户。
func (s *UserService) Get(ctx context.Context, id uint) (*db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile 修改昵称与邮箱，邮箱需保持唯一。
func (s *UserService) UpdateProfile(ctx context.Context, id uint, name, email string) (*db.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrUserInvalidInput)
	}
	email, err = validateEmail(email)
	if err != nil {
		return nil, err
	}
	if email != user.Email {
		if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
			return nil, err
		}
	}

	user.Name = name
	user.Email = email
	if err := s.db.WithContext(ctx).Model(user).Select("name", "email").Updates(user).Error; err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// ChangePassword 校验当前密码后设置新密码。
func (s *UserService) ChangePassword(ctx context.Context, id uint, current, next string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", string(hashed)).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteAccount 在一个事务中删除用户及其名下的频道、点击、收藏与点赞。
func (s *UserService) DeleteAccount(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&db.Channel{}).Select("id").Where("created_by = ?", id)
		if err := tx.Where("channel_id IN (?) OR user_id = ?", owned, id).Delete(&db.ChannelClick{}).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id IN (?)", owned).Delete(&db.ChannelHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("created_by = ?", id).Delete(&db.Channel{}).Error; err != nil {
			return err
		}

		bookmarks := tx.Model(&db.Bookmark{}).Select("id").Where("user_id = ?", id)
		if err := tx.Where("bookmark_id IN (?) OR user_id = ?", bookmarks, id).Delete(&db.BookmarkLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&db.Bookmark{}).Error; err != nil {
			return err
		}

		return tx.Unscoped().Delete(&db.User{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string, exceptID uint) error {
	var count int64
	query := s.db.WithContext(ctx).Unscoped().Model(&db.User{}).Where("email = ?", email)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return nil
}

func validateEmail(raw string) (string, error) {
	email := db.NormalizeEmail(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", ErrUserInvalidInput)
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrUserInvalidInput, minPasswordLength)
	}
	return nil
}
