package validate_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/errs"
	"github.com/yeisme/papervault/pkg/internal/model"
	"github.com/yeisme/papervault/pkg/internal/validate"
)

func str(s string) *string { return &s }

func newValidator() *validate.Validator {
	clock := func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return validate.New(configs.PaperConfig{}, validate.WithClock(clock))
}

func pdf(size int) *validate.File {
	return &validate.File{Name: "paper.pdf", ContentType: model.MimeTypePDF, Size: int64(size), Data: make([]byte, size)}
}

func fieldErrors(t *testing.T, err error) []errs.FieldError {
	t.Helper()

	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	require.NotEmpty(t, ve.Fields)

	return ve.Fields
}

func TestValidatePaperNormalizes(t *testing.T) {
	v := newValidator()

	d, err := v.ValidatePaper(validate.PaperFields{
		Title:    str("  Attention Is All You Need  "),
		Authors:  str(" Vaswani, , Shazeer ,Parmar"),
		Abstract: str("  transformers  "),
		Keywords: str("nlp, ,attention"),
		Year:     str(" 2017 "),
	}, pdf(5120))
	require.NoError(t, err)

	assert.Equal(t, "Attention Is All You Need", d.Title)
	assert.Equal(t, []string{"Vaswani", "Shazeer", "Parmar"}, d.Authors)
	require.NotNil(t, d.Abstract)
	assert.Equal(t, "transformers", *d.Abstract)
	assert.Equal(t, []string{"nlp", "attention"}, d.Keywords)
	require.NotNil(t, d.Year)
	assert.Equal(t, 2017, *d.Year)
	assert.EqualValues(t, 5120, d.File.Size)
}

func TestValidatePaperOptionalFieldsAbsent(t *testing.T) {
	v := newValidator()

	d, err := v.ValidatePaper(validate.PaperFields{Title: str("T"), Authors: str("A")}, pdf(1))
	require.NoError(t, err)

	assert.Nil(t, d.Abstract)
	assert.Nil(t, d.Year)
	assert.NotNil(t, d.Keywords)
	assert.Empty(t, d.Keywords)

	d, err = v.ValidatePaper(validate.PaperFields{Title: str("T"), Authors: str("A"), Abstract: str("   "), Year: str("")}, pdf(1))
	require.NoError(t, err)
	assert.Nil(t, d.Abstract)
	assert.Nil(t, d.Year)
}

func TestValidatePaperCollectsAllErrors(t *testing.T) {
	v := newValidator()

	_, err := v.ValidatePaper(validate.PaperFields{
		Title:    str(strings.Repeat("x", 201)),
		Authors:  str(" , ,"),
		Abstract: str(strings.Repeat("a", 2001)),
		Year:     str("1899"),
	}, &validate.File{Name: "a.txt", ContentType: "text/plain", Size: 0})

	fields := fieldErrors(t, err)
	assert.Equal(t, []errs.FieldError{
		{Field: "title", Message: "Title must be less than 200 characters"},
		{Field: "authors", Message: "At least one author is required"},
		{Field: "abstract", Message: "Abstract must be less than 2000 characters"},
		{Field: "year", Message: "Year must be between 1900 and next year"},
		{Field: "file", Message: "File cannot be empty"},
		{Field: "file", Message: "Only PDF files are allowed"},
	}, fields)
	assert.Equal(t, errs.CategoryValidation, errs.CategoryOf(err))
}

func TestValidatePaperLimitsCountCharacters(t *testing.T) {
	v := newValidator()

	_, err := v.ValidatePaper(validate.PaperFields{
		Title:    str(strings.Repeat("論", 200)),
		Authors:  str("A"),
		Abstract: str(strings.Repeat("é", 2000)),
	}, pdf(10))
	require.NoError(t, err)
}

func TestValidatePaperYear(t *testing.T) {
	v := newValidator()

	cases := []struct {
		year string
		msg  string
	}{
		{"1900", ""},
		{"2026", ""},
		{"2027", "Year must be between 1900 and next year"},
		{"20x3", "Year must be a number"},
		{"2023.5", "Year must be a number"},
	}

	for _, tc := range cases {
		t.Run(tc.year, func(t *testing.T) {
			_, err := v.ValidatePaper(validate.PaperFields{Title: str("T"), Authors: str("A"), Year: str(tc.year)}, pdf(1))
			if tc.msg == "" {
				require.NoError(t, err)
				return
			}

			assert.Equal(t, []errs.FieldError{{Field: "year", Message: tc.msg}}, fieldErrors(t, err))
		})
	}
}

func TestValidateFile(t *testing.T) {
	v := newValidator()

	assert.Empty(t, v.ValidateFile(pdf(10*1024*1024)))
	assert.Equal(t, []errs.FieldError{{Field: "file", Message: "File is required"}}, v.ValidateFile(nil))
	assert.Equal(t,
		[]errs.FieldError{
			{Field: "file", Message: "File size must be less than 10MB"},
			{Field: "file", Message: "Only PDF files are allowed"},
		},
		v.ValidateFile(&validate.File{ContentType: "application/x-pdf", Size: 10*1024*1024 + 1}),
	)
}

func TestValidateFileTrustsContentOverDeclaredSize(t *testing.T) {
	v := newValidator()
	empty := []errs.FieldError{{Field: "file", Message: "File cannot be empty"}}

	assert.Equal(t, empty, v.ValidateFile(&validate.File{ContentType: model.MimeTypePDF, Size: 512}))
	assert.Equal(t, empty, v.ValidateFile(&validate.File{ContentType: model.MimeTypePDF, Size: 512, Data: []byte{}}))

	mismatched := &validate.File{ContentType: model.MimeTypePDF, Size: 1, Data: make([]byte, 10*1024*1024+1)}
	assert.Equal(t,
		[]errs.FieldError{{Field: "file", Message: "File size must be less than 10MB"}},
		v.ValidateFile(mismatched),
	)

	assert.Empty(t, v.ValidateFile(&validate.File{ContentType: model.MimeTypePDF, Size: 0, Data: []byte("%PDF")}))
}

func TestValidateSearchDefaults(t *testing.T) {
	v := newValidator()

	spec, err := v.ValidateSearch(validate.SearchParams{})
	require.NoError(t, err)
	assert.Equal(t, validate.SearchSpec{
		Scope:     model.ScopeAll,
		Page:      1,
		Limit:     10,
		SortBy:    model.SortCreatedAt,
		SortOrder: model.SortDesc,
	}, *spec)
	assert.Equal(t, 0, spec.Offset())

	spec, err = v.ValidateSearch(validate.SearchParams{
		Query: str("  graph  "), Field: str("keywords"), Page: str("3"), Limit: str("50"),
		SortBy: str("year"), SortOrder: str("asc"),
	})
	require.NoError(t, err)
	assert.Equal(t, "graph", spec.Query)
	assert.Equal(t, model.ScopeKeywords, spec.Scope)
	assert.Equal(t, 100, spec.Offset())
}

func TestValidateSearchFailFast(t *testing.T) {
	v := newValidator()

	cases := []struct {
		name  string
		in    validate.SearchParams
		field string
		msg   string
	}{
		{"query too long", validate.SearchParams{Query: str(strings.Repeat("q", 101)), Page: str("0")}, "query", "Search query too long"},
		{"bad field", validate.SearchParams{Field: str("venue"), Limit: str("0")}, "field", "Field must be one of all, title, authors, abstract, keywords"},
		{"page zero", validate.SearchParams{Page: str("0"), Limit: str("99")}, "page", "Page must be at least 1"},
		{"page empty", validate.SearchParams{Page: str("")}, "page", "Page must be a number"},
		{"page text", validate.SearchParams{Page: str("two")}, "page", "Page must be a number"},
		{"limit zero", validate.SearchParams{Limit: str("0")}, "limit", "Limit must be at least 1"},
		{"limit too big", validate.SearchParams{Limit: str("51"), SortBy: str("venue")}, "limit", "Limit must be at most 50"},
		{"bad sort", validate.SearchParams{SortBy: str("createdat")}, "sortBy", "Sort field must be one of createdAt, title, year"},
		{"bad order", validate.SearchParams{SortOrder: str("DESC")}, "sortOrder", "Sort order must be asc or desc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.ValidateSearch(tc.in)
			assert.Equal(t, []errs.FieldError{{Field: tc.field, Message: tc.msg}}, fieldErrors(t, err))
		})
	}
}

func TestValidatePaperID(t *testing.T) {
	v := newValidator()

	id, err := v.ValidatePaperID("01J9Z3-abc")
	require.NoError(t, err)
	assert.Equal(t, "01J9Z3-abc", id)

	for _, raw := range []string{"", "abc_def", "a b", "../etc", "ab;c"} {
		_, err := v.ValidatePaperID(raw)
		assert.True(t, errs.Is(err, errs.CategoryValidation), raw)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, validate.SplitList("A, B"))
	assert.Equal(t, []string{}, validate.SplitList(""))
	assert.Equal(t, []string{"x y"}, validate.SplitList(" , x y ,"))
}
