package wiring

import (
	"context"
	"path/filepath"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"provify/internal/agent"
	"provify/internal/bug"
	"provify/internal/config"
	"provify/internal/lifecycle"
	"provify/internal/store"
	"provify/internal/verdict"
)

func commandConfig(dir, reply string) config.Config {
	cfg := config.Default()
	cfg.Store = config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(dir, "provify.db")}
	cfg.Targets = config.TargetsConfig{
		Source:   "static",
		Static:   []config.StaticTarget{{ID: "emulator-5554", Label: "Pixel 7"}, {ID: "emulator-5556"}, {ID: "emulator-5558"}},
		LockFile: filepath.Join(dir, "devices.lock"),
	}
	cfg.Agent = config.AgentConfig{
		Mode:    "command",
		Command: "/bin/sh",
		Args:    []string{"-c", "echo 'tapping around on {serial}'; echo '" + reply + "'"},
		Timeout: config.Duration{Duration: 10 * time.Second},
	}
	cfg.Packages = map[string]string{"Example Mail": "com.example.mail"}
	return cfg
}

var _ = ginkgo.Describe("Engine", func() {
	var ctx context.Context

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
	})

	ginkgo.It("verifies, fixes and re-verifies a bug through a command agent", func() {
		dir := ginkgo.GinkgoT().TempDir()
		e, err := Build(ctx, commandConfig(dir, `{"bug_reproduced": true, "observations": "app crashed", "steps_executed": ["open", "send"]}`))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		ginkgo.DeferCleanup(e.Close)
		gomega.Expect(e.CanVerifyLocally()).To(gomega.Succeed())

		b, created, err := e.Intake.Add(ctx, bug.Input{AppName: "example mail", Description: "crash when sending"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(created).To(gomega.BeTrue())
		gomega.Expect(b.Package).To(gomega.BeEmpty())

		v, err := e.Orchestrator.Verify(ctx, b.ID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(v.Reproduced).To(gomega.BeTrue())
		gomega.Expect(v.Confidence).To(gomega.Equal(verdict.ConfidenceHigh))
		gomega.Expect(v.Attempted).To(gomega.Equal(3))

		stored, err := e.Store.LoadBug(ctx, b.ID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(stored.Status).To(gomega.Equal(bug.StatusVerified))
		gomega.Expect(stored.Package).To(gomega.Equal("com.example.mail"))
		gomega.Expect(stored.Steps).To(gomega.Equal([]string{"open", "send"}))
		gomega.Expect(stored.LastVerified).NotTo(gomega.BeNil())

		_, err = e.Orchestrator.MarkFixed(ctx, b.ID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		rep, err := e.Orchestrator.Run(ctx, b.ID, lifecycle.IntentReverify)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(rep.Transition.Kind).To(gomega.Equal(lifecycle.KindRegression))
		gomega.Expect(rep.Bug.Notes).To(gomega.HavePrefix("REGRESSION"))
	})

	ginkgo.It("runs a batch and skips verified bugs", func() {
		dir := ginkgo.GinkgoT().TempDir()
		e, err := Build(ctx, commandConfig(dir, `{"bug_reproduced": false, "observations": "works"}`))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		ginkgo.DeferCleanup(e.Close)

		for _, in := range []bug.Input{
			{AppName: "Notes", Package: "com.example.notes", Description: "title disappears"},
			{AppName: "Notes", Package: "com.example.notes", Description: "crash on share"},
		} {
			_, _, err := e.Intake.Add(ctx, in)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		}

		rep, err := e.Orchestrator.VerifyPending(ctx)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(rep.Items).To(gomega.HaveLen(2))
		gomega.Expect(rep.Failed()).To(gomega.BeZero())

		nr, err := e.Store.ListBugs(ctx, store.Filter{Status: bug.StatusNotReproducible})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(nr).To(gomega.HaveLen(2))
	})

	ginkgo.It("reports agent failures as errored targets", func() {
		dir := ginkgo.GinkgoT().TempDir()
		cfg := commandConfig(dir, "")
		cfg.Agent.Args = []string{"-c", "echo 'opened launcher'; echo 'adb: device offline' >&2; exit 3"}
		e, err := Build(ctx, cfg)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		ginkgo.DeferCleanup(e.Close)

		b, _, err := e.Intake.Add(ctx, bug.Input{AppName: "Mail", Package: "com.example.mail", Description: "crash"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		v, err := e.Orchestrator.Verify(ctx, b.ID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(v.Reproduced).To(gomega.BeFalse())
		gomega.Expect(v.Confidence).To(gomega.Equal(verdict.ConfidenceLow))
		gomega.Expect(v.Errored).To(gomega.Equal(3))
		gomega.Expect(v.Results[0].Failure.Kind).To(gomega.Equal(verdict.FailureAgent))
		gomega.Expect(v.Results[0].Failure.Reason).To(gomega.Equal("adb: device offline"))
		gomega.Expect(v.Results[0].Trace).To(gomega.ContainSubstring("opened launcher"))
	})

	ginkgo.It("routes tasks through the MCP executor in mcp mode", func() {
		cfg := config.Default()
		cfg.Store = config.StoreConfig{Driver: "memory"}
		cfg.Targets = config.TargetsConfig{Source: "static", Static: []config.StaticTarget{{ID: "emulator-5554"}}}
		runCtx, cancel := context.WithCancel(ctx)
		ginkgo.DeferCleanup(cancel)

		e, err := Build(runCtx, cfg)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(e.CanVerifyLocally()).To(gomega.MatchError(ErrNoLocalAgent))
		gomega.Expect(e.MCPServer()).NotTo(gomega.BeNil())

		b, _, err := e.Intake.Add(ctx, bug.Input{AppName: "Mail", Package: "com.example.mail", Description: "crash"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		go func() {
			defer ginkgo.GinkgoRecover()
			task, err := e.Mux.NextTask(runCtx, "emulator-5554")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(e.Mux.SubmitResult(task.DispatchID, agent.Submission{Outcome: agent.Outcome{Reproduced: true}})).To(gomega.Succeed())
		}()

		v, err := e.Orchestrator.Verify(ctx, b.ID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(v.Reproduced).To(gomega.BeTrue())
	})

	ginkgo.It("rejects invalid configuration", func() {
		cfg := config.Default()
		cfg.Agent.Mode = "command"
		_, err := Build(ctx, cfg)
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})

