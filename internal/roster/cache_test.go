package roster

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/roster-scan/internal/scanning"
)

var _ = Describe("Identity", func() {
	DescribeTable("deriving the cache key from a filename",
		func(filename, expected string) {
			Expect(Identity(filename)).To(Equal(expected))
		},
		Entry("plain name", "sheet.png", "sheet.png"),
		Entry("surrounding whitespace", "  sheet.png ", "sheet.png"),
		Entry("unix path", "/tmp/uploads/sheet.png", "sheet.png"),
		Entry("windows path", `C:\Users\kim\sheet.jpg`, "sheet.jpg"),
		Entry("korean name", "고객명단.jpg", "고객명단.jpg"),
		Entry("empty", "", "upload"),
	)
})

// cacheBehavior runs the same contract against every EntryStore
func cacheBehavior(newStore func() EntryStore) {
	var (
		cache    *Cache
		ctx      context.Context
		expected scanning.RecordSet
	)

	BeforeEach(func() {
		cache = NewCache(newStore(), "session-1")
		ctx = context.Background()
		expected = scanning.RecordSet{
			{Phone: "010-1234-5678", Name: "Kim", Note: ""},
			{Phone: "02-000-0000", Name: "", Note: ""},
		}
	})

	Describe("GetOrCompute", func() {
		It("should compute once per identity", func() {
			calls := 0
			first, err := cache.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())
			second, err := cache.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())

			Expect(calls).To(Equal(1))
			Expect(first).To(Equal(expected))
			Expect(second).To(Equal(expected))
		})

		It("should reflect edits on later calls", func() {
			calls := 0
			_, err := cache.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())
			_, err = cache.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())

			Expect(cache.Editor("sheet.png").UpdateField(1, scanning.FieldName, "Lee")).To(Succeed())

			third, err := cache.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal(1))
			Expect(third[1].Name).To(Equal("Lee"))
		})

		It("should not store failures", func() {
			calls := 0
			failure := &scanning.ServiceError{Backend: "mock", Err: errors.New("quota exceeded")}
			_, err := cache.GetOrCompute(ctx, "sheet.png", counting(nil, failure, &calls))
			Expect(err).To(MatchError(failure))

			_, ok, getErr := cache.Get("sheet.png")
			Expect(getErr).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			records, err := cache.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(Equal(expected))
			Expect(calls).To(Equal(2))
		})

		It("should store an empty extraction", func() {
			calls := 0
			records, err := cache.GetOrCompute(ctx, "blank.png", counting(nil, nil, &calls))
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())

			_, ok, _ := cache.Get("blank.png")
			Expect(ok).To(BeTrue())
		})

		It("should hand out copies", func() {
			calls := 0
			records, err := cache.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())
			records[0].Name = "changed by caller"

			again, _, _ := cache.Get("sheet.png")
			Expect(again[0].Name).To(Equal("Kim"))
		})
	})

	Describe("Refresh", func() {
		It("should overwrite the entry on success", func() {
			calls := 0
			_, err := cache.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())

			replacement := scanning.RecordSet{{Phone: "010-9999-9999", Name: "Park"}}
			records, err := cache.Refresh(ctx, "sheet.png", counting(replacement, nil, &calls))
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(Equal(replacement))
			Expect(calls).To(Equal(2))

			stored, _, _ := cache.Get("sheet.png")
			Expect(stored).To(Equal(replacement))
		})

		It("should keep the old entry on failure", func() {
			calls := 0
			_, err := cache.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())

			_, err = cache.Refresh(ctx, "sheet.png", counting(nil, errors.New("timeout"), &calls))
			Expect(err).To(HaveOccurred())

			stored, _, _ := cache.Get("sheet.png")
			Expect(stored).To(Equal(expected))
		})
	})

	Describe("Clear", func() {
		It("should make the next call compute again", func() {
			calls := 0
			_, err := cache.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())
			Expect(cache.Clear("sheet.png")).To(Succeed())
			_, err = cache.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal(2))
		})

		It("should not fail for unknown identities", func() {
			Expect(cache.Clear("missing.png")).To(Succeed())
		})
	})

	Describe("Identities and Purge", func() {
		BeforeEach(func() {
			calls := 0
			for _, id := range []string{"b.png", "a.png"} {
				_, err := cache.GetOrCompute(ctx, id, counting(expected, nil, &calls))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should list the cached identities in order", func() {
			Expect(cache.Identities()).To(Equal([]string{"a.png", "b.png"}))
		})

		It("should remove everything on purge", func() {
			Expect(cache.Purge()).To(Succeed())
			Expect(cache.Identities()).To(BeEmpty())
		})
	})

	Describe("namespaces", func() {
		It("should isolate sessions sharing a store", func() {
			store := newStore()
			first := NewCache(store, "session-a")
			second := NewCache(store, "session-b")

			calls := 0
			_, err := first.GetOrCompute(ctx, "sheet.png", counting(expected, nil, &calls))
			Expect(err).NotTo(HaveOccurred())

			_, ok, err := second.Get("sheet.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("concurrent misses", func() {
		It("should share a single compute call", func() {
			var (
				mu      sync.Mutex
				calls   int
				release = make(chan struct{})
				wg      sync.WaitGroup
			)
			compute := func(ctx context.Context) (scanning.RecordSet, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				<-release
				return expected.Clone(), nil
			}

			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					records, err := cache.GetOrCompute(ctx, "sheet.png", compute)
					Expect(err).NotTo(HaveOccurred())
					Expect(records).To(Equal(expected))
				}()
			}

			time.Sleep(50 * time.Millisecond)
			close(release)
			wg.Wait()

			Expect(calls).To(Equal(1))
		})

		It("should not let a refresh join an ordinary miss in flight", func() {
			started := make(chan struct{})
			release := make(chan struct{})
			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				_, err := cache.GetOrCompute(ctx, "sheet.png", func(ctx context.Context) (scanning.RecordSet, error) {
					close(started)
					<-release
					return expected.Clone(), nil
				})
				Expect(err).NotTo(HaveOccurred())
			}()
			<-started

			refreshed := scanning.RecordSet{{Phone: "010-9999-0000", Name: "New", Note: ""}}
			refreshCalls := 0
			records, err := cache.Refresh(ctx, "sheet.png", counting(refreshed, nil, &refreshCalls))
			close(release)
			<-done

			Expect(err).NotTo(HaveOccurred())
			Expect(refreshCalls).To(Equal(1))
			Expect(records).To(Equal(refreshed))
		})
	})
}

var _ = Describe("Cache", func() {
	Context("with a MemoryStore", func() {
		cacheBehavior(func() EntryStore { return NewMemoryStore() })
	})

	Context("with a BoltStore", func() {
		var stores []*BoltStore

		AfterEach(func() {
			for _, s := range stores {
				s.Close()
			}
			stores = nil
		})

		cacheBehavior(func() EntryStore {
			store, err := NewBoltStore(filepath.Join(GinkgoT().TempDir(), "cache.db"))
			Expect(err).NotTo(HaveOccurred())
			stores = append(stores, store)
			return store
		})
	})

	It("should use the default namespace when none is given", func() {
		Expect(NewCache(NewMemoryStore(), "").Namespace()).To(Equal(DefaultNamespace))
	})
})
