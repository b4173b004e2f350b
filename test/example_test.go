package test

import (
	"context"
	"fmt"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/counter"
)

// ExampleNew builds an engine on the in-process counter store.
func ExampleNew() {
	verifier := goGuard.VerifierFunc(func(_ context.Context, identity, secret string) (*goGuard.Principal, error) {
		if identity == "alice@example.com" && secret == "correct-horse" {
			return &goGuard.Principal{ID: "user-1"}, nil
		}
		return nil, nil
	})

	engine, err := goGuard.New().
		WithStore(counter.NewMemoryStore(nil)).
		WithVerifier(verifier).
		Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()

	res, _ := engine.Login(context.Background(), " Alice@Example.com ", "wrong")
	fmt.Println(res.Outcome, res.Identity, res.AttemptsRemaining)
	// Output: rejected alice@example.com 4
}

// ExampleEngine_AllowN rate limits an operation without a configured rule.
func ExampleEngine_AllowN() {
	engine, err := goGuard.New().
		WithStore(counter.NewMemoryStore(nil)).
		WithVerifier(goGuard.VerifierFunc(func(context.Context, string, string) (*goGuard.Principal, error) {
			return nil, nil
		})).
		Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()

	for i := 0; i < 3; i++ {
		d, _ := engine.AllowN(context.Background(), "bob", "export", 2, time.Minute)
		fmt.Println(d.Allowed, d.Remaining)
	}
	// Output:
	// true 1
	// true 0
	// false 0
}
