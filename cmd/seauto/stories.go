package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/entrhq/seauto/pkg/runner"
	"github.com/entrhq/seauto/pkg/storyctx"
)

const defaultSiteURL = "https://www.bing.com"

// homePage is the search engine landing page.
type homePage struct {
	site *storyctx.Site
}

func (p *homePage) search(phrase string) error {
	return p.site.Visit("search?q=" + url.QueryEscape(phrase))
}

// resultsPage reads the organic results of a search.
type resultsPage struct {
	story *storyctx.StoryContext
}

// majorResults maps the title of each organic result to its link.
func (p *resultsPage) majorResults() (map[string]string, error) {
	d, err := p.story.Driver()
	if err != nil {
		return nil, err
	}
	src, err := d.PageSource()
	if err != nil {
		return nil, fmt.Errorf("failed to read results page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	results := make(map[string]string)
	doc.Find("li.b_algo h2 a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		results[strings.TrimSpace(s.Text())] = href
	})
	return results, nil
}

func home(sc *storyctx.StoryContext) (*homePage, error) {
	p, err := sc.Page("home", func() interface{} { return &homePage{site: sc.Site()} })
	if err != nil {
		return nil, err
	}
	return p.(*homePage), nil
}

func results(sc *storyctx.StoryContext) (*resultsPage, error) {
	p, err := sc.Page("results", func() interface{} { return &resultsPage{story: sc} })
	if err != nil {
		return nil, err
	}
	return p.(*resultsPage), nil
}

// searchStory looks for a company among the major results of a search.
func searchStory(phrase, want string) runner.Story {
	return runner.Story{
		Name: "search",
		Scenarios: []runner.Scenario{{
			Title: "Search for " + phrase,
			Steps: []runner.Step{
				{
					Text: "Given I am on the home page",
					Run: func(_ context.Context, env *runner.Env) error {
						return env.Story.Site().Open()
					},
				},
				{
					Text: "When I search for " + phrase,
					Run: func(_ context.Context, env *runner.Env) error {
						p, err := home(env.Story)
						if err != nil {
							return err
						}
						return p.search(phrase)
					},
				},
				{
					Text: "Then I will see " + want + " in the list of results",
					Run: func(_ context.Context, env *runner.Env) error {
						p, err := results(env.Story)
						if err != nil {
							return err
						}
						found, err := p.majorResults()
						if err != nil {
							return err
						}
						if _, ok := found[want]; !ok {
							return fmt.Errorf("major search result links did not contain '%s'", want)
						}
						return nil
					},
				},
			},
		}},
	}
}

func sampleStories() []runner.Story {
	return []runner.Story{searchStory("partnet", "Partnet")}
}
