package service

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"building_chat/internal/models"
	"building_chat/internal/repository"
	"building_chat/internal/utils"
)

type UserService struct {
	userRepo repository.UserRepository
	tokens   *utils.TokenManager
}

func NewUserService(userRepo repository.UserRepository, tokens *utils.TokenManager) *UserService {
	return &UserService{userRepo: userRepo, tokens: tokens}
}

// Register 建立使用者；role 為空時視為住戶
func (s *UserService) Register(username, password, displayName string, role models.UserRole) (*models.User, error) {
	username = strings.TrimSpace(username)
	if role == "" {
		role = models.RoleResident
	}
	if !role.Valid() {
		return nil, errors.New("unknown role: " + string(role))
	}

	if _, err := s.userRepo.FindByUsername(username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 對密碼進行加密
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:    username,
		Password:    string(hashedPassword),
		DisplayName: displayName,
		Role:        role,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 驗證密碼並簽發 token
func (s *UserService) Login(username, password string) (string, *models.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Name(), string(user.Role))
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *UserService) GetUser(id uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}
