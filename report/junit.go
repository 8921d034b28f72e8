package report

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/gametest"
)

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Time      string      `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	Cases     []junitCase `xml:"testcase"`

	total time.Duration
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Skipped   *junitMessage `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr,omitempty"`
	Text    string `xml:",chardata"`
}

// JUnitSink writes a JUnit XML report when a run finishes. Failed optional
// tests are reported as skipped so they don't fail CI.
type JUnitSink struct {
	path    string
	started time.Time
	suites  []*junitSuite
	byBatch map[string]*junitSuite
}

func NewJUnitSink(path string) *JUnitSink {
	j := &JUnitSink{path: path}
	j.reset()
	return j
}

func (j *JUnitSink) reset() {
	j.started = time.Now()
	j.suites = nil
	j.byBatch = map[string]*junitSuite{}
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func (j *JUnitSink) OnRunStarted(tests, batches int) {
	j.reset()
}

func (j *JUnitSink) add(r Result) {
	suite, found := j.byBatch[r.Batch]
	if !found {
		suite = &junitSuite{Name: r.Batch, Timestamp: time.Now().UTC().Format(time.RFC3339)}
		j.byBatch[r.Batch] = suite
		j.suites = append(j.suites, suite)
	}
	c := junitCase{
		Name:      r.Name,
		ClassName: r.Structure,
		Time:      seconds(r.Duration),
		SystemOut: fmt.Sprintf("attempt %d, %d ticks", r.Attempt, r.Ticks),
	}
	suite.Tests++
	suite.total += r.Duration
	if !r.Passed {
		msg := &junitMessage{Message: r.Message(), Type: fmt.Sprintf("%T", errors.Cause(r.Err)), Text: worldtest.StackTrace(r.Err)}
		if r.Required {
			c.Failure = msg
			suite.Failures++
		} else {
			c.Skipped = msg
			suite.Skipped++
		}
	}
	suite.Cases = append(suite.Cases, c)
}

func (j *JUnitSink) OnTestFailed(e *gametest.Execution) {
	j.add(FromExecution(e))
}

func (j *JUnitSink) OnTestSuccess(e *gametest.Execution) {
	j.add(FromExecution(e))
}

// Report renders the results collected so far.
func (j *JUnitSink) Report() ([]byte, error) {
	suites := junitSuites{
		Name: "worldtest",
		Time: seconds(time.Since(j.started)),
	}
	for _, s := range j.suites {
		s.Time = seconds(s.total)
		suites.Tests += s.Tests
		suites.Failures += s.Failures
		suites.Skipped += s.Skipped
		suites.Suites = append(suites.Suites, *s)
	}
	b, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return nil, worldtest.WithStack(err)
	}
	return append([]byte(xml.Header), b...), nil
}

func (j *JUnitSink) Finish() {
	if err := j.write(); err != nil {
		logError("writing JUnit report", err)
	}
	j.reset()
}

func (j *JUnitSink) write() error {
	b, err := j.Report()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(j.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return worldtest.WithStack(err)
		}
	}
	if err := os.WriteFile(j.path, b, 0644); err != nil {
		return errors.Wrapf(err, "writing %q", j.path)
	}
	return nil
}
