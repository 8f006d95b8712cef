package auth

import (
	"errors"
	"fmt"
	"time"

	"gshost/internal/server/models"
	"gshost/internal/shared/utils"

	"gorm.io/gorm"
)

// UserService 用户服务
type UserService struct {
	db *gorm.DB
}

// NewUserService 创建用户服务
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Login 用户登录
func (us *UserService) Login(username, password string) (*models.User, error) {
	var user models.User
	if err := us.db.Where("username = ? AND is_active = ?", username, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("用户名或密码错误")
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	// 验证密码
	if !utils.CheckPassword(password, user.Password) {
		return nil, errors.New("用户名或密码错误")
	}

	// 更新最后登录时间
	now := time.Now()
	user.LastLogin = &now
	us.db.Save(&user)

	return &user, nil
}

// GetUserByID 根据ID获取用户
func (us *UserService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := us.db.Where("id = ? AND is_active = ?", id, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("用户不存在")
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	return &user, nil
}

// CreateUser 创建用户
func (us *UserService) CreateUser(username, password, role string) (*models.User, error) {
	// 检查用户名是否已存在
	var existingUser models.User
	if err := us.db.Where("username = ?", username).First(&existingUser).Error; err == nil {
		return nil, errors.New("用户名已存在")
	}

	switch role {
	case models.RoleAdmin, models.RoleOperator, models.RoleViewer:
	case "":
		role = models.RoleViewer
	default:
		return nil, fmt.Errorf("未知的角色: %s", role)
	}

	// 加密密码
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	// 创建用户
	user := &models.User{
		Username: username,
		Password: hashedPassword,
		Role:     role,
		IsActive: true,
	}

	if err := us.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	return user, nil
}

// UpdateUser 更新用户信息
func (us *UserService) UpdateUser(id uint, updates map[string]interface{}) error {
	// 如果要更新密码，需要加密
	if password, exists := updates["password"]; exists {
		if passwordStr, ok := password.(string); ok && passwordStr != "" {
			hashedPassword, err := utils.HashPassword(passwordStr)
			if err != nil {
				return fmt.Errorf("密码加密失败: %w", err)
			}
			updates["password"] = hashedPassword
		}
	}

	result := us.db.Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("更新用户失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("用户不存在")
	}

	return nil
}

// ListUsers 查询全部用户
func (us *UserService) ListUsers() ([]models.User, error) {
	var users []models.User
	if err := us.db.Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("查询用户列表失败: %w", err)
	}
	return users, nil
}
