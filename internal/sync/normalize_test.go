package sync

import (
	"testing"

	"borntoski-evo-sync/internal/evo"
)

func TestNormalizeMemberBasic(t *testing.T) {
	rec := evo.Record{
		"idMember":  float64(1234),
		"firstName": "João Paulo",
		"lastName":  "3C",
		"gender":    "M",
		"birthDate": "1990-06-15T00:00:00",
		"email":     "joao@example.com",
		"phone":     "(11) 98765-4321",
		"createdAt": "2024-03-01T10:30:00",
	}

	m, ok := NormalizeMember(rec, false)
	if !ok {
		t.Fatal("expected record to normalize")
	}

	if m.ExternalID != "1234" {
		t.Errorf("external id = %q, want 1234", m.ExternalID)
	}
	if m.RawName != "João Paulo 3C" {
		t.Errorf("raw name = %q", m.RawName)
	}
	if m.Level != "3C" || m.LevelRank != 32 {
		t.Errorf("level = %q rank %d, want 3C rank 32", m.Level, m.LevelRank)
	}
	if m.Gender != "Masculino" {
		t.Errorf("gender = %q", m.Gender)
	}
	if m.BirthDate != "1990-06-15" {
		t.Errorf("birth date = %q", m.BirthDate)
	}
	if m.Age == nil || *m.Age < 30 || *m.Age > 40 {
		t.Errorf("age = %v, want mid thirties", m.Age)
	}
	if m.Phone != "+5511987654321" {
		t.Errorf("phone = %q", m.Phone)
	}
	if m.Email != "joao@example.com" {
		t.Errorf("email = %q", m.Email)
	}
	if m.ExternalCreatedAt != "2024-03-01" {
		t.Errorf("external created at = %q", m.ExternalCreatedAt)
	}
}

func TestNormalizeMemberMissingID(t *testing.T) {
	if _, ok := NormalizeMember(evo.Record{"name": "MARIA 2B"}, false); ok {
		t.Error("expected record without id to be rejected")
	}
}

func TestNormalizeMemberStripTokens(t *testing.T) {
	rec := evo.Record{"idMember": float64(7), "fullName": "CARLA 2ASKI"}

	m, _ := NormalizeMember(rec, true)
	if m.CleanName != "CARLA" {
		t.Errorf("clean name = %q, want CARLA", m.CleanName)
	}
	if m.Level != "2A" || m.Discipline != "SK" {
		t.Errorf("level = %q discipline = %q", m.Level, m.Discipline)
	}

	m, _ = NormalizeMember(rec, false)
	if m.CleanName != "CARLA 2ASKI" {
		t.Errorf("clean name with stripping off = %q", m.CleanName)
	}

	// A detached SKI belongs to no code: it neither qualifies nor strips
	rec = evo.Record{"idMember": float64(8), "fullName": "CARLA 2A SKI"}
	m, _ = NormalizeMember(rec, true)
	if m.CleanName != "CARLA SKI" {
		t.Errorf("clean name = %q, want CARLA SKI", m.CleanName)
	}
	if m.Level != "2A" || m.Discipline != "" {
		t.Errorf("level = %q discipline = %q, want undesignated 2A", m.Level, m.Discipline)
	}
}

func TestNormalizeMemberContacts(t *testing.T) {
	rec := evo.Record{
		"idMember": "55",
		"fullName": "PEDRO 1B",
		"contacts": []any{
			map[string]any{"type": "EMAIL", "value": "pedro@example.com"},
			map[string]any{"type": "CELULAR", "value": "21912345678", "ddi": "55"},
		},
	}

	m, _ := NormalizeMember(rec, false)
	if m.Email != "pedro@example.com" {
		t.Errorf("email = %q", m.Email)
	}
	if m.Phone != "+5521912345678" {
		t.Errorf("phone = %q", m.Phone)
	}
}

func TestNormalizeMemberAddress(t *testing.T) {
	rec := evo.Record{
		"idMember": "9",
		"fullName": "ANA 4A",
		"addresses": []any{
			map[string]any{"street": "Rua A", "city": "Campos do Jordão", "isMain": false},
			map[string]any{"street": "Rua B", "city": "SÃ£o Paulo", "state": "SP", "isMain": true},
		},
	}

	m, _ := NormalizeMember(rec, false)
	if m.Street != "Rua B" {
		t.Errorf("street = %q, want the main address", m.Street)
	}
	if m.City != "São Paulo" {
		t.Errorf("city = %q, want mojibake repaired", m.City)
	}
	if m.State != "SP" {
		t.Errorf("state = %q", m.State)
	}
}

func TestNormalizeMemberFlatAddress(t *testing.T) {
	rec := evo.Record{
		"idMember": "10",
		"fullName": "BRUNO 2C",
		"city":     "Gramado",
		"uf":       "RS",
	}

	m, _ := NormalizeMember(rec, false)
	if m.City != "Gramado" || m.State != "RS" {
		t.Errorf("city/state = %q/%q", m.City, m.State)
	}
}

func TestToClientNullables(t *testing.T) {
	m := &Member{ExternalID: "1", RawName: "X", CleanName: "X"}

	c := m.ToClient()
	if c.CurrentLevel != nil || c.Email != nil || c.City != nil {
		t.Error("empty fields should map to nil")
	}

	m.Level, m.LevelRank, m.Discipline = "3B", 31, "SB"
	m.City = "Bariloche"
	c = m.ToClient()
	// The level never rides along on the row, only the qualifier does
	if c.CurrentLevel != nil || c.CurrentLevelRank != nil {
		t.Errorf("level on row = %v/%v, want nil", c.CurrentLevel, c.CurrentLevelRank)
	}
	if c.Discipline == nil || *c.Discipline != "SB" {
		t.Errorf("discipline = %v", c.Discipline)
	}
	if c.City == nil || *c.City != "Bariloche" {
		t.Errorf("city = %v", c.City)
	}
}

func TestCanonicalGender(t *testing.T) {
	cases := map[string]string{
		"M":         "Masculino",
		"feminino":  "Feminino",
		"female":    "Feminino",
		"":          "Não informado",
		"outro":     "Outro",
		"MASCULINO": "Masculino",
	}
	for in, want := range cases {
		if got := canonicalGender(in); got != want {
			t.Errorf("canonicalGender(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanPhone(t *testing.T) {
	cases := map[string]string{
		"(11) 98765-4321": "+5511987654321",
		"5511987654321":   "+5511987654321",
		"1133334444":      "+551133334444",
		"":                "",
		"abc":             "",
		"4915112345678":   "+4915112345678",
	}
	for in, want := range cases {
		if got := cleanPhone(in); got != want {
			t.Errorf("cleanPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanEmail(t *testing.T) {
	if got := cleanEmail(" ana@example.com "); got != "ana@example.com" {
		t.Errorf("cleanEmail = %q", got)
	}
	for _, bad := range []string{"", "nope", "@x.com", "a@nodot"} {
		if got := cleanEmail(bad); got != "" {
			t.Errorf("cleanEmail(%q) = %q, want empty", bad, got)
		}
	}
}

func TestFixMojibake(t *testing.T) {
	if got := fixMojibake("SÃ£o Paulo"); got != "São Paulo" {
		t.Errorf("fixMojibake = %q", got)
	}
	// Already-correct text passes through
	if got := fixMojibake("São Paulo"); got != "São Paulo" {
		t.Errorf("fixMojibake on clean text = %q", got)
	}
	if got := fixMojibake("plain ascii"); got != "plain ascii" {
		t.Errorf("fixMojibake on ascii = %q", got)
	}
}

func TestParseBirthDate(t *testing.T) {
	d, age := parseBirthDate("2000-01-02T00:00:00")
	if d != "2000-01-02" || age == nil {
		t.Errorf("parseBirthDate = %q, %v", d, age)
	}

	d, age = parseBirthDate("02/01/2000")
	if d != "2000-01-02" || age == nil {
		t.Errorf("parseBirthDate br layout = %q, %v", d, age)
	}

	if d, age := parseBirthDate("not a date"); d != "" || age != nil {
		t.Errorf("parseBirthDate garbage = %q, %v", d, age)
	}

	// Implausible ages keep the date but drop the age
	if d, age := parseBirthDate("1850-01-01"); d != "1850-01-01" || age != nil {
		t.Errorf("parseBirthDate ancient = %q, %v", d, age)
	}
}
