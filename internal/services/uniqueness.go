package services

import (
	"context"
	"strings"

	"github.com/BradenHooton/roster/internal/models"
)

// CountryRepository is used to validate country_id on profiles
type CountryRepository interface {
	List(ctx context.Context) ([]models.Country, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// accountChecks validates the email, username and country of a new or
// changed account. current is nil on create; unchanged values are not
// checked against themselves.
type accountChecks struct {
	users     UserRepository
	countries CountryRepository
}

func (c accountChecks) validate(ctx context.Context, current *models.User, email, username *string, countryID *int64) error {
	verr := &models.ValidationError{}

	if email != nil && (current == nil || !strings.EqualFold(current.Email, *email)) {
		taken, err := c.users.EmailExists(ctx, *email)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("email", "The email has already been taken.")
		}
	}

	if username != nil && (current == nil || !strings.EqualFold(current.Username, *username)) {
		taken, err := c.users.UsernameExists(ctx, *username)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("username", "The username has already been taken.")
		}
	}

	if countryID != nil {
		ok, err := c.countries.Exists(ctx, *countryID)
		if err != nil {
			return err
		}
		if !ok {
			verr.Add("country_id", "The selected country id is invalid.")
		}
	}

	return verr.OrNil()
}
