package service

import (
	"context"
	"strings"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// SuggestionSampleSize bounds the random user suggestions returned at once.
const SuggestionSampleSize = 5

type UserService struct {
	userRepo   repository.UserRepository
	bcryptCost int
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UpdateProfileInput carries optional profile changes. Nil fields are left as is.
type UpdateProfileInput struct {
	UserID    uint
	FirstName *string
	LastName  *string
	Email     *string
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo, bcryptCost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func (s *UserService) WithBcryptCost(cost int) *UserService {
	s.bcryptCost = cost
	return s
}

// Register validates the input, hashes the password and stores the user.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, fieldError("username", err)
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, fieldError("email", err)
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, fieldError("password", err)
	}
	firstName, err := validation.OptionalText("first_name", in.FirstName, 150)
	if err != nil {
		return nil, fieldError("first_name", err)
	}
	lastName, err := validation.OptionalText("last_name", in.LastName, 150)
	if err != nil {
		return nil, fieldError("last_name", err)
	}

	existing, err := s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("username", "A user with that username already exists.")
	}
	existing, err = s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("email", "A user with that email already exists.")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: firstName,
		LastName:  lastName,
		Password:  string(hashed),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials. login may be a username or an email address.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, models.NewValidationError("Username and password are required")
	}

	var user *models.User
	var err error
	if strings.Contains(login, "@") {
		user, err = s.userRepo.GetByEmail(ctx, login)
	} else {
		user, err = s.userRepo.GetByUsername(ctx, login)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if err := requireActor(in.UserID); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		v, err := validation.OptionalText("first_name", *in.FirstName, 150)
		if err != nil {
			return nil, fieldError("first_name", err)
		}
		user.FirstName = v
	}
	if in.LastName != nil {
		v, err := validation.OptionalText("last_name", *in.LastName, 150)
		if err != nil {
			return nil, fieldError("last_name", err)
		}
		user.LastName = v
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := validation.ValidateEmail(email); err != nil {
			return nil, fieldError("email", err)
		}
		user.Email = email
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SuggestUsers returns a random sample of other users. An anonymous caller
// excludes nobody.
func (s *UserService) SuggestUsers(ctx context.Context, viewerID uint) ([]models.User, error) {
	return s.userRepo.Sample(ctx, viewerID, SuggestionSampleSize)
}
