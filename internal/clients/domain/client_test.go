package domain

import (
	"testing"

	projectdomain "agency_portal_backend/internal/projects/domain"
)

func TestDeterminePackage(t *testing.T) {
	cases := []struct {
		name      string
		keyPoints []string
		want      projectdomain.Package
	}{
		{"ecommerce", []string{"Needs an E-Commerce shop"}, projectdomain.PackagePremium},
		{"integration beats cms", []string{"CMS for the team", "CRM integration"}, projectdomain.PackagePremium},
		{"cms", []string{"Wants a CMS"}, projectdomain.PackageStandard},
		{"blog", []string{"weekly blog"}, projectdomain.PackageStandard},
		{"plain", []string{"single landing page"}, projectdomain.PackageStarter},
		{"empty", nil, projectdomain.PackageStarter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeterminePackage(tc.keyPoints); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
