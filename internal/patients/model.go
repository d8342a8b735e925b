package patients

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

// Species recognised by the clinic. Other values are stored lowercased.
var Species = []string{"dog", "cat", "bird", "rabbit", "hamster", "guinea_pig", "reptile", "other"}

var (
	phoneDigits = regexp.MustCompile(`^\d{10,15}$`)
	chipDigits  = regexp.MustCompile(`^\d{9,15}$`)
	phoneStrip  = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	chipStrip   = strings.NewReplacer(" ", "", "-", "")
)

// Patient is a pet together with its owner's contact details.
type Patient struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	PetName        string     `json:"pet_name"`
	Species        string     `json:"species"`
	Breed          string     `json:"breed,omitempty"`
	Color          string     `json:"color,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	ChipNumber     string     `json:"chip_number,omitempty"`
	WeightKg       *float64   `json:"weight,omitempty"`
	OwnerFirstName string     `json:"owner_first_name"`
	OwnerLastName  string     `json:"owner_last_name"`
	OwnerEmail     string     `json:"owner_email,omitempty"`
	OwnerPhone     string     `json:"owner_phone,omitempty"`
	OwnerAddress   string     `json:"owner_address,omitempty"`
	MedicalHistory string     `json:"medical_history,omitempty"`
	Allergies      string     `json:"allergies,omitempty"`
	SpecialNotes   string     `json:"special_notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// OwnerFullName joins the owner's first and last name.
func (p *Patient) OwnerFullName() string {
	return strings.TrimSpace(p.OwnerFirstName + " " + p.OwnerLastName)
}

// DisplayName is the label used in calendars and emails, e.g. "Rex (Smith)".
func (p *Patient) DisplayName() string {
	if p.OwnerLastName == "" {
		return p.PetName
	}
	return p.PetName + " (" + p.OwnerLastName + ")"
}

// AgeYears returns whole years since birth, nil when unknown.
func (p *Patient) AgeYears(now time.Time) *int {
	if p.DateOfBirth == nil {
		return nil
	}
	dob := *p.DateOfBirth
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return &years
}

// Input carries create and patch fields. Nil pointers are left unchanged
// on update; on create the required fields must be present.
type Input struct {
	PetName        *string    `json:"pet_name"`
	Species        *string    `json:"species"`
	Breed          *string    `json:"breed"`
	Color          *string    `json:"color"`
	Gender         *string    `json:"gender"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	ChipNumber     *string    `json:"chip_number"`
	WeightKg       *float64   `json:"weight"`
	OwnerFirstName *string    `json:"owner_first_name"`
	OwnerLastName  *string    `json:"owner_last_name"`
	OwnerEmail     *string    `json:"owner_email"`
	OwnerPhone     *string    `json:"owner_phone"`
	OwnerAddress   *string    `json:"owner_address"`
	MedicalHistory *string    `json:"medical_history"`
	Allergies      *string    `json:"allergies"`
	SpecialNotes   *string    `json:"special_notes"`
}

// NewPatient validates a create request.
func NewPatient(tenantID string, in Input) (*Patient, error) {
	if in.PetName == nil || in.Species == nil || in.OwnerFirstName == nil || in.OwnerLastName == nil {
		return nil, apperr.Validation("pet_name, species, owner_first_name and owner_last_name are required")
	}
	p := &Patient{TenantID: tenantID}
	if err := in.ApplyTo(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyTo validates the set fields and copies them onto p.
func (in Input) ApplyTo(p *Patient) error {
	if in.PetName != nil {
		name := strings.TrimSpace(*in.PetName)
		if name == "" || len(name) > 100 {
			return apperr.Validation("pet_name must be 1-100 characters")
		}
		p.PetName = name
	}
	if in.Species != nil {
		species := NormalizeSpecies(*in.Species)
		if species == "" {
			return apperr.Validation("species is required")
		}
		p.Species = species
	}
	if in.Breed != nil {
		p.Breed = strings.TrimSpace(*in.Breed)
	}
	if in.Color != nil {
		p.Color = strings.TrimSpace(*in.Color)
	}
	if in.Gender != nil {
		p.Gender = NormalizeGender(*in.Gender)
	}
	if in.DateOfBirth != nil {
		dob := in.DateOfBirth.UTC()
		p.DateOfBirth = &dob
	}
	if in.ChipNumber != nil {
		chip, err := NormalizeChip(*in.ChipNumber)
		if err != nil {
			return err
		}
		p.ChipNumber = chip
	}
	if in.WeightKg != nil {
		if *in.WeightKg <= 0 {
			return apperr.Validation("weight must be greater than 0")
		}
		w := *in.WeightKg
		p.WeightKg = &w
	}
	if in.OwnerFirstName != nil {
		v := strings.TrimSpace(*in.OwnerFirstName)
		if v == "" || len(v) > 100 {
			return apperr.Validation("owner_first_name must be 1-100 characters")
		}
		p.OwnerFirstName = v
	}
	if in.OwnerLastName != nil {
		v := strings.TrimSpace(*in.OwnerLastName)
		if v == "" || len(v) > 100 {
			return apperr.Validation("owner_last_name must be 1-100 characters")
		}
		p.OwnerLastName = v
	}
	if in.OwnerEmail != nil {
		email := strings.TrimSpace(*in.OwnerEmail)
		if email != "" {
			addr, err := mail.ParseAddress(email)
			if err != nil || addr.Address != email {
				return apperr.Validation("owner_email is not a valid email address")
			}
		}
		p.OwnerEmail = email
	}
	if in.OwnerPhone != nil {
		phone, err := NormalizePhone(*in.OwnerPhone)
		if err != nil {
			return err
		}
		p.OwnerPhone = phone
	}
	if in.OwnerAddress != nil {
		p.OwnerAddress = strings.TrimSpace(*in.OwnerAddress)
	}
	if in.MedicalHistory != nil {
		p.MedicalHistory = *in.MedicalHistory
	}
	if in.Allergies != nil {
		p.Allergies = *in.Allergies
	}
	if in.SpecialNotes != nil {
		p.SpecialNotes = *in.SpecialNotes
	}
	return nil
}

// NormalizeSpecies lowercases the species name.
func NormalizeSpecies(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeGender maps anything outside male/female to unknown.
func NormalizeGender(raw string) string {
	switch g := strings.ToLower(strings.TrimSpace(raw)); g {
	case "male", "female":
		return g
	default:
		return "unknown"
	}
}

// NormalizePhone strips separators and requires 10-15 digits.
func NormalizePhone(raw string) (string, error) {
	phone := phoneStrip.Replace(strings.TrimSpace(raw))
	if phone == "" {
		return "", nil
	}
	if !phoneDigits.MatchString(phone) {
		return "", apperr.Validation("phone number must be 10-15 digits")
	}
	return phone, nil
}

// NormalizeChip strips separators and requires 9-15 digits.
func NormalizeChip(raw string) (string, error) {
	chip := chipStrip.Replace(strings.TrimSpace(raw))
	if chip == "" {
		return "", nil
	}
	if !chipDigits.MatchString(chip) {
		return "", apperr.Validation("chip number must be 9-15 digits")
	}
	return chip, nil
}
