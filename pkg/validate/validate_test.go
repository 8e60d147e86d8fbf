package validate

import (
	"errors"
	"testing"

	"github.com/mchmarny/pricer/pkg/schema"
	"github.com/mchmarny/pricer/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() table.Record {
	return table.Record(schema.Boston().Defaults())
}

func TestValidate_Valid(t *testing.T) {
	res := New(schema.Boston()).Validate(validRecord())
	assert.True(t, res.Valid())
	assert.NoError(t, res.Err())
}

func TestValidate_Missing(t *testing.T) {
	rec := validRecord()
	delete(rec, schema.RM)
	delete(rec, schema.CRIM)

	res := New(schema.Boston()).Validate(rec)
	assert.False(t, res.Valid())
	assert.Equal(t, []string{schema.CRIM, schema.RM}, res.Missing)

	var se *SchemaError
	require.True(t, errors.As(res.Err(), &se))
	assert.Equal(t, "missing columns: CRIM, RM", se.Error())
}

func TestValidate_OutOfDomain(t *testing.T) {
	rec := validRecord()
	rec[schema.NOX] = 1.5

	res := New(schema.Boston()).Validate(rec)
	require.Len(t, res.OutOfDomain, 1)
	assert.Equal(t, schema.NOX, res.OutOfDomain[0].Name)
	assert.Contains(t, res.Err().Error(), "NOX=1.5 not in [0, 1]")

	res = New(schema.Boston(), WithDomainCheck(false)).Validate(rec)
	assert.True(t, res.Valid())
}

func TestValidateTable_MissingExactly(t *testing.T) {
	tests := []struct {
		name    string
		drop    []string
		missing []string
	}{
		{"none", nil, nil},
		{"rm", []string{schema.RM}, []string{schema.RM}},
		{"two out of order", []string{schema.LSTAT, schema.ZN}, []string{schema.ZN, schema.LSTAT}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cols []string
			for _, n := range schema.Boston().RequiredFields() {
				if !contains(tt.drop, n) {
					cols = append(cols, n)
				}
			}
			cols = append(cols, "extra")

			err := New(schema.Boston(), WithDomainCheck(false)).ValidateTable(table.New(cols...))
			if tt.missing == nil {
				assert.NoError(t, err)
				return
			}
			var se *SchemaError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.missing, se.Missing)
		})
	}
}

func TestValidateTable_DomainCheck(t *testing.T) {
	tbl := table.New(schema.Boston().RequiredFields()...)
	tbl.Rows = append(tbl.Rows,
		[]string{"0.2", "12.5", "7.0", "0", "0.5", "6.0", "60.0", "4.0", "5", "300.0", "18.0", "300.0", "12.0"},
		[]string{"0.2", "12.5", "7.0", "0", "1.5", "6.0", "60.0", "4.0", "5", "300.0", "18.0", "300.0", "12.0"},
		[]string{"0.2", "12.5", "7.0", "0", "abc", "6.0", "60.0", "4.0", "5", "300.0", "18.0", "300.0", "12.0"},
	)

	assert.NoError(t, New(schema.Boston(), WithDomainCheck(false)).ValidateTable(tbl))

	err := New(schema.Boston()).ValidateTable(tbl)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	require.Len(t, se.Violations, 1)
	assert.Equal(t, 2, se.Violations[0].Row)
	assert.Equal(t, schema.NOX, se.Violations[0].Name)
	assert.Contains(t, err.Error(), "row 2: NOX=1.5")
}

func TestMissingColumns(t *testing.T) {
	m := MissingColumns([]string{"CRIM"}, schema.Boston())
	assert.Len(t, m, 12)
	assert.Equal(t, schema.ZN, m[0])
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
