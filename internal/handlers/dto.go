package handlers

import (
	"context"
	"time"

	"github.com/BradenHooton/roster/internal/models"
)

// PictureResolver turns a stored profile picture path into a temporary URL
type PictureResolver interface {
	PictureURL(ctx context.Context, user *models.User) *string
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID              int64            `json:"id"`
	Email           string           `json:"email"`
	Username        string           `json:"username"`
	Active          bool             `json:"active"`
	EmailVerifiedAt *time.Time       `json:"email_verified_at"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Roles           []string         `json:"roles"`
	Permissions     []string         `json:"permissions,omitempty"`
	Profile         *ProfileResponse `json:"user_profile"`
}

type ProfileResponse struct {
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	MiddleName        *string `json:"middle_name"`
	MobileNumber      *string `json:"mobile_number"`
	TelephoneNumber   *string `json:"telephone_number"`
	Sex               *string `json:"sex"`
	Birthday          *string `json:"birthday"`
	AddressLine1      *string `json:"address_line_1"`
	AddressLine2      *string `json:"address_line_2"`
	AddressLine3      *string `json:"address_line_3"`
	District          *string `json:"district"`
	City              *string `json:"city"`
	Province          *string `json:"province"`
	PostalCode        *string `json:"postal_code"`
	CountryID         *int64  `json:"country_id"`
	ProfilePictureURL *string `json:"profile_picture_url"`
}

func userToResponse(ctx context.Context, u *models.User, pictures PictureResolver) UserResponse {
	resp := UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		Username:        u.Username,
		Active:          u.Active,
		EmailVerifiedAt: u.EmailVerifiedAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
		Roles:           u.RoleNames(),
	}

	if p := u.Profile; p != nil {
		resp.Profile = &ProfileResponse{
			FirstName:       p.FirstName,
			LastName:        p.LastName,
			MiddleName:      p.MiddleName,
			MobileNumber:    p.MobileNumber,
			TelephoneNumber: p.TelephoneNumber,
			Sex:             p.Sex,
			AddressLine1:    p.AddressLine1,
			AddressLine2:    p.AddressLine2,
			AddressLine3:    p.AddressLine3,
			District:        p.District,
			City:            p.City,
			Province:        p.Province,
			PostalCode:      p.PostalCode,
			CountryID:       p.CountryID,
		}
		if p.Birthday != nil {
			b := p.Birthday.Format(DateLayout)
			resp.Profile.Birthday = &b
		}
		if pictures != nil {
			resp.Profile.ProfilePictureURL = pictures.PictureURL(ctx, u)
		}
	}

	return resp
}

func usersToResponse(ctx context.Context, users []models.User, pictures PictureResolver) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, userToResponse(ctx, &users[i], pictures))
	}
	return out
}

// TokenResponse is an issued access token; the signed value is never listed again
type TokenResponse struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func tokensToResponse(tokens []models.AccessToken) []TokenResponse {
	out := make([]TokenResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, TokenResponse{
			ID:         t.ID,
			Name:       t.Name,
			ExpiresAt:  t.ExpiresAt,
			LastUsedAt: t.LastUsedAt,
			CreatedAt:  t.CreatedAt,
		})
	}
	return out
}

// AuthTokenResponse is returned by login and registration
type AuthTokenResponse struct {
	Token     string        `json:"token"`
	TokenName string        `json:"token_name"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user,omitempty"`
}

type CountryResponse struct {
	ID        int64  `json:"id"`
	ISO       string `json:"iso"`
	Name      string `json:"name"`
	ISO3      string `json:"iso3"`
	NumCode   int    `json:"num_code"`
	PhoneCode int    `json:"phone_code"`
}

func countriesToResponse(countries []models.Country) []CountryResponse {
	out := make([]CountryResponse, 0, len(countries))
	for _, c := range countries {
		out = append(out, CountryResponse(c))
	}
	return out
}

// ProfileRequest carries the optional profile fields shared by registration,
// user management and self-service profile updates
type ProfileRequest struct {
	FirstName       *string `json:"first_name" validate:"omitempty,max=255"`
	LastName        *string `json:"last_name" validate:"omitempty,max=255"`
	MiddleName      *string `json:"middle_name" validate:"omitempty,max=255"`
	MobileNumber    *string `json:"mobile_number" validate:"omitempty,e164"`
	TelephoneNumber *string `json:"telephone_number" validate:"omitempty,e164"`
	Sex             *string `json:"sex" validate:"omitempty,oneof=male female"`
	Birthday        *string `json:"birthday" validate:"omitempty,datetime=2006-01-02,pastdate"`
	AddressLine1    *string `json:"address_line_1" validate:"omitempty,max=255"`
	AddressLine2    *string `json:"address_line_2" validate:"omitempty,max=255"`
	AddressLine3    *string `json:"address_line_3" validate:"omitempty,max=255"`
	District        *string `json:"district" validate:"omitempty,max=255"`
	City            *string `json:"city" validate:"omitempty,max=255"`
	Province        *string `json:"province" validate:"omitempty,max=255"`
	PostalCode      *string `json:"postal_code" validate:"omitempty,max=255"`
	CountryID       *int64  `json:"country_id" validate:"omitempty,gt=0"`
}

func (p ProfileRequest) changes() models.ProfileChanges {
	return models.ProfileChanges{
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		MiddleName:      p.MiddleName,
		MobileNumber:    p.MobileNumber,
		TelephoneNumber: p.TelephoneNumber,
		Sex:             p.Sex,
		Birthday:        parseDate(p.Birthday),
		AddressLine1:    p.AddressLine1,
		AddressLine2:    p.AddressLine2,
		AddressLine3:    p.AddressLine3,
		District:        p.District,
		City:            p.City,
		Province:        p.Province,
		PostalCode:      p.PostalCode,
		CountryID:       p.CountryID,
	}
}

func (p ProfileRequest) profile() models.UserProfile {
	profile := models.UserProfile{
		MiddleName:      p.MiddleName,
		MobileNumber:    p.MobileNumber,
		TelephoneNumber: p.TelephoneNumber,
		Sex:             p.Sex,
		Birthday:        parseDate(p.Birthday),
		AddressLine1:    p.AddressLine1,
		AddressLine2:    p.AddressLine2,
		AddressLine3:    p.AddressLine3,
		District:        p.District,
		City:            p.City,
		Province:        p.Province,
		PostalCode:      p.PostalCode,
		CountryID:       p.CountryID,
	}
	if p.FirstName != nil {
		profile.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		profile.LastName = *p.LastName
	}
	return profile
}
