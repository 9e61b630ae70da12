package judge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/judge"
)

const customersSchema = `
CREATE TABLE Customers (CustomerID INTEGER PRIMARY KEY, Name TEXT, City TEXT);
INSERT INTO Customers VALUES (1, 'Alice', 'New York');
INSERT INTO Customers VALUES (2, 'Bob', 'London');
INSERT INTO Customers VALUES (3, 'Charlie', 'New York');
`

const countrySchema = `
CREATE TABLE Customers (CustomerID INTEGER PRIMARY KEY, Name TEXT, Country TEXT);
INSERT INTO Customers VALUES (1, 'Anna', 'Germany');
INSERT INTO Customers VALUES (2, 'Jonas', 'Germany');
INSERT INTO Customers VALUES (3, 'Ana', 'Mexico');
`

func TestDeclarative_Evaluate(t *testing.T) {
	oracle := domain.DeclarativeOracle{
		Schema: customersSchema,
		Query:  "SELECT Name FROM Customers WHERE City = 'New York' ORDER BY Name ASC;",
	}

	tests := map[string]struct {
		oracle     domain.DeclarativeOracle
		submission string
		timeout    time.Duration
		assert     func(t *testing.T, v domain.Verdict)
	}{
		"matching query should be correct": {
			oracle:     oracle,
			submission: "select Name from Customers where City='New York' order by Name",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictCorrect, v.Status)
				assert.True(t, v.Passed)
				assert.Contains(t, v.Diagnostic, "Alice")
				assert.Contains(t, v.Diagnostic, "(2 rows)")
				assert.Contains(t, v.Diagnostic, "Status: Correct!")
			},
		},

		"same rows in a different order should be incorrect": {
			oracle:     oracle,
			submission: "SELECT Name FROM Customers WHERE City = 'New York' ORDER BY Name DESC",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
				assert.False(t, v.Passed)
				assert.Contains(t, v.Diagnostic, "Status: Incorrect.")
			},
		},

		"different column name should be incorrect": {
			oracle:     oracle,
			submission: "SELECT Name AS n FROM Customers WHERE City = 'New York' ORDER BY Name",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
			},
		},

		"numeric types should not be coerced": {
			oracle:     domain.DeclarativeOracle{Query: "SELECT 1 AS v"},
			submission: "SELECT 1.0 AS v",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
			},
		},

		"empty result should be reported": {
			oracle:     oracle,
			submission: "SELECT Name FROM Customers WHERE City = 'Paris'",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
				assert.Contains(t, v.Diagnostic, "Your query returned no results.")
			},
		},

		"syntax error should be incorrect with the engine message": {
			oracle:     oracle,
			submission: "SELEC Name FROM Customers",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
				assert.Contains(t, v.Diagnostic, "SQL Error:")
			},
		},

		"empty submission should be invalid": {
			oracle:     oracle,
			submission: "   ",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictInvalid, v.Status)
			},
		},

		"broken schema should be an oracle error": {
			oracle:     domain.DeclarativeOracle{Schema: "CREATE TABLE (", Query: "SELECT 1"},
			submission: "SELECT 1",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictOracleError, v.Status)
			},
		},

		"broken reference query should be an oracle error": {
			oracle:     domain.DeclarativeOracle{Schema: customersSchema, Query: "SELECT nope FROM Customers"},
			submission: "SELECT Name FROM Customers",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictOracleError, v.Status)
			},
		},

		"runaway query should time out": {
			oracle:     domain.DeclarativeOracle{Query: "SELECT 1"},
			submission: "WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c) SELECT count(*) FROM c",
			timeout:    200 * time.Millisecond,
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictTimeout, v.Status)
			},
		},

		"grouped rows in the reference order should pass": {
			oracle: domain.DeclarativeOracle{
				Schema: countrySchema,
				Query:  "SELECT Country, COUNT(*) AS c FROM Customers GROUP BY Country ORDER BY c DESC",
			},
			submission: "SELECT Country, COUNT(*) AS c FROM Customers GROUP BY Country ORDER BY c DESC, Country",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictCorrect, v.Status)
				assert.Contains(t, v.Diagnostic, "Germany")
				assert.Contains(t, v.Diagnostic, "(2 rows)")
			},
		},

		"grouped rows in reverse order should fail": {
			oracle: domain.DeclarativeOracle{
				Schema: countrySchema,
				Query:  "SELECT Country, COUNT(*) AS c FROM Customers GROUP BY Country ORDER BY c DESC",
			},
			submission: "SELECT Country, COUNT(*) AS c FROM Customers GROUP BY Country ORDER BY c ASC",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
				assert.False(t, v.Passed)
			},
		},

		"emptying the table before a matching select should be rejected": {
			oracle:     oracle,
			submission: "DELETE FROM Customers; SELECT Name FROM Customers WHERE City = 'New York' ORDER BY Name ASC;",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
				assert.False(t, v.Passed)
				assert.Contains(t, v.Diagnostic, "one statement at a time")
			},
		},

		"dropping a table should be incorrect, not an oracle error": {
			oracle:     oracle,
			submission: "DROP TABLE Customers",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
				assert.Contains(t, v.Diagnostic, "SQL Error:")
				assert.Contains(t, v.Diagnostic, "readonly")
			},
		},

		"writes should fail with the engine message": {
			oracle:     oracle,
			submission: "UPDATE Customers SET City = 'New York'",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
				assert.Contains(t, v.Diagnostic, "SQL Error:")
			},
		},

		"semicolons in literals and comments should not split the statement": {
			oracle:     domain.DeclarativeOracle{Query: "SELECT 'a;b' AS v"},
			submission: "-- first; second\nSELECT 'a;b' /* ; */ AS v;  \n",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictCorrect, v.Status)
			},
		},

		"submission changes should not leak into another evaluation": {
			oracle:     oracle,
			submission: "SELECT Name FROM Customers WHERE City = 'New York' ORDER BY Name",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictCorrect, v.Status)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			j := judge.NewDeclarative(judge.DeclarativeConfig{Timeout: tt.timeout})
			// A destructive submission on a private database must not affect this one.
			_ = j.Evaluate(context.Background(), tt.oracle, "DELETE FROM Customers")

			tt.assert(t, j.Evaluate(context.Background(), tt.oracle, tt.submission))
		})
	}
}

func TestChoice_Evaluate(t *testing.T) {
	oracle := domain.ChoiceOracle{Options: []string{"A list", "A tuple", "A dict"}, CorrectIndex: 1}

	tests := map[string]struct {
		submission string
		want       domain.VerdictStatus
		passed     bool
		contains   string
	}{
		"correct index":       {submission: "1", want: domain.VerdictCorrect, passed: true, contains: "Correct!"},
		"surrounding spaces":  {submission: " 1 \n", want: domain.VerdictCorrect, passed: true},
		"wrong index":         {submission: "0", want: domain.VerdictIncorrect, contains: "'A tuple'"},
		"not a number":        {submission: "tuple", want: domain.VerdictInvalid, contains: "Invalid answer format."},
		"negative index":      {submission: "-1", want: domain.VerdictInvalid},
		"index out of bounds": {submission: "3", want: domain.VerdictInvalid},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			v := judge.Choice{}.Evaluate(oracle, tt.submission)
			assert.Equal(t, tt.want, v.Status)
			assert.Equal(t, tt.passed, v.Passed)
			assert.Contains(t, v.Diagnostic, tt.contains)
		})
	}

	v := judge.Choice{}.Evaluate(domain.ChoiceOracle{Options: []string{"a"}, CorrectIndex: 4}, "0")
	assert.Equal(t, domain.VerdictOracleError, v.Status)
}
