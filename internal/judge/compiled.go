package judge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/judge/literal"
	"github.com/victornm/quizjudge/internal/judge/symbol"
	"github.com/victornm/quizjudge/internal/sandbox"
)

const (
	defaultJavacCommand   = "javac -encoding UTF-8 -nowarn -cp {classpath} -d {out} {sources}"
	defaultJavaCommand    = "java -cp {classpath} {main}"
	defaultCompileTimeout = 10 * time.Second
	defaultRunTimeout     = 10 * time.Second
	javaDriverClass       = "HarnessMain"
)

type CompiledConfig struct {
	Runner         sandbox.Runner
	CompileCommand string
	RunCommand     string
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	// HelperJar is the JSON library the generated driver reports results with.
	HelperJar string
	Extractor symbol.Extractor
}

// Compiled judges Java classes. The submission is compiled together with a generated
// driver class, then the driver calls the extracted method once per test case.
type Compiled struct {
	runner         sandbox.Runner
	compile        sandbox.Template
	run            sandbox.Template
	compileTimeout time.Duration
	runTimeout     time.Duration
	helperJar      string
	extractor      symbol.Extractor
}

func NewCompiled(c CompiledConfig) (*Compiled, error) {
	if c.CompileCommand == "" {
		c.CompileCommand = defaultJavacCommand
	}
	if c.RunCommand == "" {
		c.RunCommand = defaultJavaCommand
	}
	if c.CompileTimeout <= 0 {
		c.CompileTimeout = defaultCompileTimeout
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaultRunTimeout
	}
	if c.Extractor == nil {
		c.Extractor = symbol.Java{}
	}

	compile, err := sandbox.ParseTemplate(c.CompileCommand)
	if err != nil {
		return nil, fmt.Errorf("compiled judge: %w", err)
	}

	run, err := sandbox.ParseTemplate(c.RunCommand)
	if err != nil {
		return nil, fmt.Errorf("compiled judge: %w", err)
	}

	return &Compiled{
		runner:         c.Runner,
		compile:        compile,
		run:            run,
		compileTimeout: c.CompileTimeout,
		runTimeout:     c.RunTimeout,
		helperJar:      c.HelperJar,
		extractor:      c.Extractor,
	}, nil
}

func (j *Compiled) Evaluate(ctx context.Context, o domain.CompiledOracle, submission string) domain.Verdict {
	if len(o.Tests) == 0 {
		return oracleError(fmt.Errorf("no test cases"))
	}

	if _, err := os.Stat(j.helperJar); j.helperJar == "" || err != nil {
		return setupError("helper library not found at %q", j.helperJar)
	}

	sym, warnings := j.extractor.Extract(submission)
	if sym.Return.Name == "void" {
		return withWarnings(domain.Verdict{
			Status:     domain.VerdictInvalid,
			Diagnostic: fmt.Sprintf("Method %s returns void; it must return the answer.", sym.Name),
		}, warnings)
	}

	main := javaDriverClass
	for main == sym.Class {
		main += "_"
	}

	driver, driverWarnings, err := javaDriver(main, sym, o.Tests)
	if err != nil {
		return setupError("render test cases: %v", err)
	}
	warnings = append(warnings, driverWarnings...)

	marker := newResultMarker()

	var verdict domain.Verdict
	err = sandbox.Workspace("quizjudge-java-", func(dir string) error {
		src := filepath.Join(dir, "src")
		out := filepath.Join(dir, "out")
		if err := os.MkdirAll(out, 0o755); err != nil {
			return err
		}

		files := map[string]string{
			sym.Class + ".java": submission,
			main + ".java":      driver,
		}
		if err := sandbox.WriteFiles(src, files); err != nil {
			return err
		}

		verdict = j.compileAndRun(ctx, dir, src, out, main, marker, []string{
			filepath.Join(src, sym.Class+".java"),
			filepath.Join(src, main+".java"),
		}, o.Tests)
		return nil
	})
	if err != nil {
		return setupError("%v", err)
	}

	return withWarnings(verdict, warnings)
}

func (j *Compiled) compileAndRun(ctx context.Context, dir, src, out, main, marker string, sources []string, tests []domain.TestCase) domain.Verdict {
	name, args, err := j.compile.Expand(map[string][]string{
		"classpath": {j.helperJar},
		"out":       {out},
		"src":       {src},
		"sources":   sources,
	})
	if err != nil {
		return setupError("%v", err)
	}

	res, err := j.runner.Run(ctx, sandbox.Command{Path: name, Args: args, Dir: dir, Timeout: j.compileTimeout})
	if v, failed := runFailure(ctx, err, "Compilation", j.compileTimeout); failed {
		return v
	}

	if res.ExitCode != 0 {
		return domain.Verdict{
			Status:     domain.VerdictCompileError,
			Diagnostic: "Compilation failed:\n" + processOutput(res),
		}
	}

	name, args, err = j.run.Expand(map[string][]string{
		"classpath": {out + string(os.PathListSeparator) + j.helperJar},
		"main":      {main},
		"out":       {out},
	})
	if err != nil {
		return setupError("%v", err)
	}

	res, err = j.runner.Run(ctx, sandbox.Command{
		Path:    name,
		Args:    args,
		Dir:     dir,
		Stdin:   marker + "\n",
		Timeout: j.runTimeout,
	})
	if v, failed := runFailure(ctx, err, "Execution", j.runTimeout); failed {
		return v
	}

	if res.ExitCode != 0 {
		return domain.Verdict{
			Status:     domain.VerdictRuntimeError,
			Diagnostic: fmt.Sprintf("Runtime error (exit code %d):\n%s", res.ExitCode, processOutput(res)),
		}
	}

	cases, err := parseResults(res.Stdout, marker, tests)
	if err != nil {
		return domain.Verdict{
			Status:     domain.VerdictRuntimeError,
			Diagnostic: fmt.Sprintf("Runtime error: %v\n%s", err, processOutput(res)),
		}
	}

	return caseVerdict(cases)
}

// javaDriver generates the driver class. Each case runs in its own block with a fresh
// instance unless the method is static, and every Throwable is caught per case. The
// result marker is read from stdin before the submitted class is loaded.
func javaDriver(main string, sym symbol.Symbol, tests []domain.TestCase) (string, []string, error) {
	var (
		b        strings.Builder
		warnings []string
	)

	b.WriteString("import java.io.*;\nimport java.nio.charset.StandardCharsets;\nimport java.util.*;\nimport com.google.gson.*;\n\n")
	fmt.Fprintf(&b, "public class %s {\n", main)
	b.WriteString(`    private static boolean same(Object a, Object b) {
        if (a != null && b != null && a.getClass().isArray() && b.getClass().isArray()) {
            return Arrays.deepEquals(new Object[]{a}, new Object[]{b});
        }
        return Objects.equals(a, b);
    }

    private static String describe(Throwable t) {
        String m = t.getMessage();
        return t.getClass().getSimpleName() + (m == null ? "" : ": " + m);
    }

    public static void main(String[] args) throws IOException {
        String marker = new BufferedReader(new InputStreamReader(System.in, StandardCharsets.UTF_8)).readLine();
        Gson gson = new GsonBuilder().serializeNulls().create();
        JsonArray results = new JsonArray();
`)

	target := "new " + sym.Class + "()"
	if sym.Static {
		target = sym.Class
	}

	typedParams := true
	for i, tc := range tests {
		if len(sym.Params) != len(tc.Args) && typedParams {
			typedParams = false
			warnings = append(warnings, fmt.Sprintf(
				"Method %s takes %d parameters but test cases pass %d; argument types are inferred.",
				sym.Name, len(sym.Params), len(tc.Args)))
		}

		args := make([]string, len(tc.Args))
		for k, a := range tc.Args {
			var pt literal.JavaType
			if len(sym.Params) == len(tc.Args) {
				pt = sym.Params[k]
			}
			s, err := literal.Java(a, pt)
			if err != nil {
				return "", nil, fmt.Errorf("case %d argument %d: %w", i+1, k+1, err)
			}
			args[k] = s
		}

		rt := sym.Return
		if rt.IsZero() {
			inferred, err := literal.InferJavaType(tc.Expected)
			if err != nil {
				return "", nil, fmt.Errorf("case %d expected value: %w", i+1, err)
			}
			rt = inferred
		}
		expected, err := literal.Java(tc.Expected, rt)
		if err != nil {
			return "", nil, fmt.Errorf("case %d expected value: %w", i+1, err)
		}

		fmt.Fprintf(&b, `        {
            JsonObject rec = new JsonObject();
            rec.addProperty("index", %d);
            try {
                %s expected = %s;
                var actual = %s.%s(%s);
                rec.addProperty("passed", same(actual, expected));
                try {
                    rec.add("actual", gson.toJsonTree(actual));
                } catch (RuntimeException e) {
                    rec.addProperty("actual", String.valueOf(actual));
                }
            } catch (Throwable t) {
                rec.addProperty("passed", false);
                rec.addProperty("error", describe(t));
            }
            results.add(rec);
        }
`, i, rt, expected, target, sym.Name, strings.Join(args, ", "))
	}

	b.WriteString(`        System.out.flush();
        System.out.println((marker == null ? "" : marker.trim()) + gson.toJson(results));
    }
}
`)

	return b.String(), warnings, nil
}
