package schema

// Boston Housing feature names in model order.
const (
	CRIM    = "CRIM"
	ZN      = "ZN"
	INDUS   = "INDUS"
	CHAS    = "CHAS"
	NOX     = "NOX"
	RM      = "RM"
	AGE     = "AGE"
	DIS     = "DIS"
	RAD     = "RAD"
	TAX     = "TAX"
	PTRATIO = "PTRATIO"
	B       = "B"
	LSTAT   = "LSTAT"

	// PredictionColumn is the column appended to scored tables.
	PredictionColumn = "Predicted_MEDV"
)

var boston = mustNew(
	Feature{Name: CRIM, Description: "Crime rate", Domain: atLeast(0), Default: 0.2},
	Feature{Name: ZN, Description: "% large residential zones", Domain: atLeast(0), Default: 12.5},
	Feature{Name: INDUS, Description: "% non-retail business", Domain: atLeast(0), Default: 7.0},
	Feature{Name: CHAS, Description: "Borders Charles River?", Domain: Domain{Values: []float64{0, 1}}, Default: 0},
	Feature{Name: NOX, Description: "Nitric oxide conc.", Domain: between(0, 1), Default: 0.5},
	Feature{Name: RM, Description: "Avg. rooms per dwelling", Domain: between(1, 10), Default: 6.0},
	Feature{Name: AGE, Description: "% built before 1940", Domain: between(0, 100), Default: 60.0},
	Feature{Name: DIS, Description: "Distance to jobs", Domain: atLeast(0), Default: 4.0},
	Feature{Name: RAD, Description: "Highway access index", Domain: integerBetween(1, 24), Default: 5},
	Feature{Name: TAX, Description: "Property tax rate", Domain: atLeast(100), Default: 300.0},
	Feature{Name: PTRATIO, Description: "Pupil-teacher ratio", Domain: atLeast(10), Default: 18.0},
	Feature{Name: B, Description: "1000(Bk - 0.63)^2", Domain: atLeast(0), Default: 300.0},
	Feature{Name: LSTAT, Description: "% lower status population", Domain: between(0, 100), Default: 12.0},
)

// Boston returns the Boston Housing feature schema.
func Boston() *Schema {
	return boston
}

func mustNew(features ...Feature) *Schema {
	s, err := New(features...)
	if err != nil {
		panic(err)
	}
	return s
}

func atLeast(min float64) Domain {
	return Domain{Min: &min}
}

func between(min, max float64) Domain {
	return Domain{Min: &min, Max: &max}
}

func integerBetween(min, max float64) Domain {
	d := between(min, max)
	d.Integer = true
	return d
}
