package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// featureWorld holds the state of one scenario
type featureWorld struct {
	t       *testing.T
	env     *testEnv
	folders map[string]*domain.Folder
	result  *domain.SearchResult
}

func (w *featureWorld) folder(name string) (*domain.Folder, error) {
	f, ok := w.folders[name]
	if !ok {
		return nil, fmt.Errorf("unknown folder %q", name)
	}
	return f, nil
}

func (w *featureWorld) ownsFolder(owner, name string) error {
	f, err := w.env.folders.Create(context.Background(), owner, name, nil)
	if err != nil {
		return err
	}
	w.folders[name] = f
	return nil
}

func (w *featureWorld) createsUnder(owner, name, parent string) error {
	p, err := w.folder(parent)
	if err != nil {
		return err
	}
	f, err := w.env.folders.Create(context.Background(), owner, name, &p.ID)
	if err != nil {
		return err
	}
	w.folders[name] = f
	return nil
}

func (w *featureWorld) grants(granter, user, caps, name string) error {
	f, err := w.folder(name)
	if err != nil {
		return err
	}
	var set domain.Capabilities
	for _, c := range splitList(caps) {
		capability, err := domain.ParseCapability(c)
		if err != nil {
			return err
		}
		switch capability {
		case domain.CapabilityRead:
			set.Read = true
		case domain.CapabilityWrite:
			set.Write = true
		case domain.CapabilityDelete:
			set.Delete = true
		case domain.CapabilityAdmin:
			set.Admin = true
		}
	}
	_, err = w.env.permissions.Grant(context.Background(), granter, user, f.ID, set)
	return err
}

func (w *featureWorld) has(user, capability, name string) (bool, error) {
	f, err := w.folder(name)
	if err != nil {
		return false, err
	}
	access, err := w.env.permissions.EffectiveAccess(context.Background(), user, f.ID)
	if err != nil {
		return false, err
	}
	return access.Capabilities.Has(domain.Capability(capability)), nil
}

func (w *featureWorld) can(user, capability, name string) error {
	ok, err := w.has(user, capability, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s should be able to %s %s", user, capability, name)
	}
	return nil
}

func (w *featureWorld) cannot(user, capability, name string) error {
	ok, err := w.has(user, capability, name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%s should not be able to %s %s", user, capability, name)
	}
	return nil
}

func (w *featureWorld) holdsDocument(name, filename, vector string) error {
	f, err := w.folder(name)
	if err != nil {
		return err
	}
	v, err := parseVector(vector)
	if err != nil {
		return err
	}
	w.env.addDocument(w.t, f.OwnerID, f, filename, v)
	return nil
}

func (w *featureWorld) searches(user, scope, vector string) error {
	v, err := parseVector(vector)
	if err != nil {
		return err
	}
	var ids []string
	for _, name := range splitList(scope) {
		f, err := w.folder(name)
		if err != nil {
			return err
		}
		ids = append(ids, f.ID)
	}
	w.result, err = w.env.retrieval.Search(context.Background(), user, &domain.SearchRequest{Vector: v, FolderIDs: ids})
	return err
}

func (w *featureWorld) resultsAre(expected string) error {
	var got []string
	for _, s := range w.result.Sources {
		got = append(got, s.DocumentName)
	}
	if strings.Join(got, ",") != expected {
		return fmt.Errorf("expected %s, got %v", expected, got)
	}
	return nil
}

func (w *featureWorld) noResults() error {
	if len(w.result.Sources) != 0 {
		return fmt.Errorf("expected no results, got %d", len(w.result.Sources))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseVector(s string) ([]float32, error) {
	parts := splitList(s)
	v := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, err
		}
		v[i] = float32(f)
	}
	return v, nil
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			w := &featureWorld{t: t}
			sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				w.env = newTestEnv(t)
				w.folders = make(map[string]*domain.Folder)
				w.result = nil
				return ctx, nil
			})

			sc.Step(`^"([^"]*)" owns a folder "([^"]*)"$`, w.ownsFolder)
			sc.Step(`^"([^"]*)" creates a folder "([^"]*)" under "([^"]*)"$`, w.createsUnder)
			sc.Step(`^"([^"]*)" grants "([^"]*)" "([^"]*)" on "([^"]*)"$`, w.grants)
			sc.Step(`^"([^"]*)" can "([^"]*)" folder "([^"]*)"$`, w.can)
			sc.Step(`^"([^"]*)" cannot "([^"]*)" folder "([^"]*)"$`, w.cannot)
			sc.Step(`^folder "([^"]*)" holds document "([^"]*)" with vector "([^"]*)"$`, w.holdsDocument)
			sc.Step(`^"([^"]*)" searches "([^"]*)" with vector "([^"]*)"$`, w.searches)
			sc.Step(`^the results contain only "([^"]*)"$`, w.resultsAre)
			sc.Step(`^the results are "([^"]*)"$`, w.resultsAre)
			sc.Step(`^there are no results$`, w.noResults)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("feature scenarios failed")
	}
}
