package pipeline_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/creibaud/sqlmorpher/pkg/pipeline"
)

var _ = Describe("Generate", func() {
	It("should deliver produced values in order and close the stream", func() {
		s := pipeline.Generate(context.Background(), 2,
			func(ctx context.Context, emit pipeline.Emit[int]) error {
				for i := 1; i <= 3; i++ {
					if !emit(i) {
						return nil
					}
				}
				return nil
			})

		var got []int
		for r := range s.C() {
			Expect(r.Err).NotTo(HaveOccurred())
			got = append(got, r.Data)
		}
		Expect(got).To(Equal([]int{1, 2, 3}))
	})

	It("should deliver the producer's error as the final result", func() {
		boom := errors.New("read failed")
		s := pipeline.Generate(context.Background(), 1,
			func(ctx context.Context, emit pipeline.Emit[int]) error {
				emit(1)
				return boom
			})

		var last pipeline.Result[int]
		for r := range s.C() {
			last = r
		}
		Expect(last.Err).To(MatchError(boom))
	})

	It("should recover a panicking producer into an error", func() {
		s := pipeline.Generate(context.Background(), 1,
			func(ctx context.Context, emit pipeline.Emit[int]) error {
				panic("bad page")
			})

		var last pipeline.Result[int]
		for r := range s.C() {
			last = r
		}
		Expect(last.Err).To(HaveOccurred())
		Expect(last.Err.Error()).To(ContainSubstring("bad page"))
	})

	It("should unblock a producer when the consumer stops the stream", func() {
		started := make(chan struct{})
		returned := make(chan struct{})

		s := pipeline.Generate(context.Background(), 1,
			func(ctx context.Context, emit pipeline.Emit[int]) error {
				close(started)
				for i := 0; ; i++ {
					if !emit(i) {
						close(returned)
						return nil
					}
				}
			})

		Eventually(started, time.Second).Should(BeClosed())
		s.Stop()
		Eventually(returned, time.Second).Should(BeClosed())
	})

	It("should stop producing when the parent context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		s := pipeline.Generate(ctx, 1,
			func(ctx context.Context, emit pipeline.Emit[int]) error {
				// the buffer is bypassed once the context is done
				emit(1)
				emit(2)
				emit(3)
				return nil
			})

		n := 0
		for range s.C() {
			n++
		}
		// at most the buffered value slips through
		Expect(n).To(BeNumerically("<=", 1))
	})
})
