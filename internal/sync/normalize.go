package sync

import (
	"strings"
	"time"
	"unicode/utf8"

	"borntoski-evo-sync/internal/database"
	"borntoski-evo-sync/internal/evo"
	"borntoski-evo-sync/internal/level"
)

// Member is a normalized EVO member record, ready to be upserted
type Member struct {
	ExternalID string
	RawName    string
	CleanName  string

	Level      string
	LevelRank  int64
	Discipline string

	Gender    string
	BirthDate string // ISO date
	Age       *int64

	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string

	Email string
	Phone string

	ExternalCreatedAt string // ISO date
}

// NormalizeMember maps a raw EVO member record onto a Member. The external id
// and display name fields go through alias lists because EVO spells them
// differently across endpoint versions; the level is extracted from the
// display name. Returns false when the record has no usable external id.
func NormalizeMember(rec evo.Record, stripLevelTokens bool) (*Member, bool) {
	externalID := evo.FirstString(rec, "idMember", "memberId", "id", "Id")
	if externalID == "" {
		return nil, false
	}

	rawName := evo.FirstString(rec, "fullName", "name")
	if rawName == "" {
		first := evo.FirstString(rec, "firstName")
		last := evo.FirstString(rec, "lastName")
		rawName = strings.TrimSpace(first + " " + last)
	}
	rawName = fixMojibake(rawName)

	m := &Member{
		ExternalID: externalID,
		RawName:    rawName,
		CleanName:  rawName,
	}

	res := level.Extract(rawName, stripLevelTokens)
	if res.HasLevel() {
		m.Level = res.Code
		m.LevelRank = int64(res.Rank)
		m.Discipline = string(res.Discipline)
	}
	m.CleanName = res.CleanLabel

	m.Gender = canonicalGender(evo.FirstString(rec, "gender", "sexo", "sex"))
	m.BirthDate, m.Age = parseBirthDate(evo.FirstString(rec, "birthDate", "birthday", "dtBirth"))

	m.Email = cleanEmail(evo.FirstString(rec, "email"))
	m.Phone = cleanPhone(evo.FirstString(rec, "phone", "mobile", "cellphone"))
	m.fillFromContacts(rec)

	m.extractAddress(rec)

	if created := evo.FirstString(rec, "createdAt", "creationDate", "registerDate"); created != "" {
		m.ExternalCreatedAt = evo.DateOnly(created)
	}

	return m, true
}

// ToClient converts the normalized member into a database row, mapping empty
// strings to NULLs. The extracted level stays on the Member: it reaches the
// clients table only through RecordLevelIfChanged, never through the upsert.
func (m *Member) ToClient() *database.Client {
	c := &database.Client{
		ExternalID: m.ExternalID,
		RawLabel:   m.RawName,
		CleanLabel: m.CleanName,
	}
	if m.Discipline != "" {
		d := m.Discipline
		c.Discipline = &d
	}

	c.Gender = nullable(m.Gender)
	c.BirthDate = nullable(m.BirthDate)
	c.Age = m.Age
	c.Street = nullable(m.Street)
	c.Number = nullable(m.Number)
	c.Complement = nullable(m.Complement)
	c.Neighborhood = nullable(m.Neighborhood)
	c.City = nullable(m.City)
	c.State = nullable(m.State)
	c.ZipCode = nullable(m.ZipCode)
	c.Email = nullable(m.Email)
	c.Phone = nullable(m.Phone)
	c.ExternalCreatedAt = nullable(m.ExternalCreatedAt)

	return c
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// fillFromContacts reads phones and emails out of the EVO contacts list when
// the flat fields were empty
func (m *Member) fillFromContacts(rec evo.Record) {
	contacts, ok := rec["contacts"].([]any)
	if !ok {
		return
	}

	for _, item := range contacts {
		ct, ok := item.(map[string]any)
		if !ok {
			continue
		}

		// Some exports call it "type", others "contactType"
		ctype := strings.ToUpper(evo.FirstString(ct, "type", "contactType"))
		value := evo.FirstString(ct, "value", "description")
		if value == "" {
			continue
		}

		switch ctype {
		case "EMAIL", "E-MAIL", "MAIL":
			if m.Email == "" {
				m.Email = cleanEmail(value)
			}
		case "MOBILE", "CELULAR", "CELLPHONE", "PHONE", "TELEFONE":
			if m.Phone == "" {
				// DDI may come as a separate field
				if ddi := evo.FirstString(ct, "ddi"); ddi != "" && !strings.HasPrefix(value, "+") {
					value = ddi + value
				}
				m.Phone = cleanPhone(value)
			}
		}
	}
}

// extractAddress handles the address shape variants EVO produces: a list of
// address objects (possibly flagged isMain), a single object, or flat fields
// on the member record itself
func (m *Member) extractAddress(rec evo.Record) {
	var cand evo.Record

	switch addr := FirstPresent(rec, "addresses", "address").(type) {
	case []any:
		for _, item := range addr {
			a, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if cand == nil {
				cand = a
			}
			if isMain := strings.ToLower(evo.FirstString(a, "isMain")); isMain == "true" || isMain == "1" {
				cand = a
				break
			}
		}
	case map[string]any:
		cand = addr
	}

	pick := func(aliases ...string) string {
		if cand != nil {
			if v := evo.FirstString(cand, aliases...); v != "" {
				return v
			}
		}
		return evo.FirstString(rec, aliases...)
	}

	m.Street = fixMojibake(pick("street", "streetName", "publicPlace", "logradouro"))
	m.Number = pick("number", "streetNumber", "numero")
	m.Complement = fixMojibake(pick("complement", "complemento"))
	m.Neighborhood = fixMojibake(pick("neighborhood", "bairro"))
	m.City = fixMojibake(pick("city", "cidade"))
	m.State = fixMojibake(pick("state", "uf", "stateCode", "stateInitials"))
	m.ZipCode = pick("zipCode", "cep", "postalCode")
}

// FirstPresent returns the first non-nil value among the aliased keys without
// narrowing its type
func FirstPresent(rec evo.Record, aliases ...string) any {
	for _, k := range aliases {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// canonicalGender folds EVO's gender spellings into a display form
func canonicalGender(raw string) string {
	g := strings.ToLower(strings.TrimSpace(raw))
	switch g {
	case "m", "masc", "masculino", "male":
		return "Masculino"
	case "f", "fem", "feminino", "female":
		return "Feminino"
	case "":
		return "Não informado"
	}
	return strings.ToUpper(g[:1]) + g[1:]
}

var birthDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"02/01/2006",
}

// parseBirthDate parses a birth date and derives the age, discarding values
// outside a 0..120 sanity range
func parseBirthDate(raw string) (string, *int64) {
	if raw == "" {
		return "", nil
	}

	var born time.Time
	var err error
	for _, layout := range birthDateLayouts {
		born, err = time.Parse(layout, raw)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", nil
	}

	age := int64(time.Since(born).Hours() / 24 / 365.25)
	if age < 0 || age > 120 {
		return born.Format("2006-01-02"), nil
	}
	return born.Format("2006-01-02"), &age
}

// cleanPhone reduces a phone value to digits and prefixes the Brazilian
// country code when it is missing
func cleanPhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case d == "":
		return ""
	case strings.HasPrefix(d, "55"):
		return "+" + d
	case len(d) == 10 || len(d) == 11:
		return "+55" + d
	}
	return "+" + d
}

// cleanEmail keeps a value only when it plausibly is an email address
func cleanEmail(raw string) string {
	v := strings.TrimSpace(raw)
	at := strings.LastIndexByte(v, '@')
	if at <= 0 || !strings.Contains(v[at+1:], ".") {
		return ""
	}
	return v
}

// fixMojibake repairs "SÃ£o Paulo" into "São Paulo" when a latin1-decoded
// UTF-8 string slipped through EVO
func fixMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÕÂ") {
		return s
	}

	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return s // not a latin1 round-trip after all
		}
		b = append(b, byte(r))
	}
	if utf8.Valid(b) {
		return string(b)
	}
	return s
}
