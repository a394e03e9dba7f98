package cache_test

import (
	"testing"
	"time"

	"github.com/techmigra/imigra-bfa-go/internal/domain"
	"github.com/techmigra/imigra-bfa-go/internal/infra/cache"
)

func TestCatalogCache_SetAndGet(t *testing.T) {
	c := cache.New[[]domain.RequiredDocument](5 * time.Minute)

	catalog := []domain.RequiredDocument{
		{Type: "passaporte", Name: "Passaporte", Required: true},
		{Type: "certidao_nascimento", Name: "Certidão de Nascimento", Required: true},
	}
	c.Set("required_documents", catalog)

	got, ok := c.Get("required_documents")
	if !ok {
		t.Fatal("expected catalog to be cached")
	}
	if len(got) != 2 || got[0].Type != "passaporte" {
		t.Errorf("unexpected cached catalog: %+v", got)
	}
}

func TestCatalogCache_GetMiss(t *testing.T) {
	c := cache.New[[]domain.RequiredDocument](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCatalogCache_Expiration(t *testing.T) {
	c := cache.New[[]domain.RequiredDocument](50 * time.Millisecond)

	c.Set("required_documents", []domain.RequiredDocument{{Type: "rne"}})
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("required_documents")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCatalogCache_Delete(t *testing.T) {
	c := cache.New[[]domain.RequiredDocument](5 * time.Minute)

	c.Set("required_documents", []domain.RequiredDocument{{Type: "rne"}})
	c.Delete("required_documents")

	_, ok := c.Get("required_documents")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}
