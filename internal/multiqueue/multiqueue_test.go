package multiqueue_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/internal/multiqueue"
)

var _ = Describe("Multiqueue", func() {
	Context("fair ordering", func() {
		It("round-robins across non-empty subqueues", func() {
			m := multiqueue.New[string](multiqueue.Fair, nil)
			a := m.NewSubqueue()
			b := m.NewSubqueue()
			c := m.NewSubqueue()

			Expect(m.PushBack(a, "a1")).To(Succeed())
			Expect(m.PushBack(a, "a2")).To(Succeed())
			Expect(m.PushBack(b, "b1")).To(Succeed())
			Expect(m.PushBack(c, "c1")).To(Succeed())

			var got []string
			for i := 0; i < 4; i++ {
				v, r := m.Get()
				Expect(r).To(Equal(multiqueue.GetOK))
				got = append(got, v)
			}
			Expect(got).To(Equal([]string{"a1", "b1", "c1", "a2"}))
		})
	})

	Context("no subqueues", func() {
		It("blocks rather than panicking when Get is called with zero subqueues", func() {
			m := multiqueue.New[int](multiqueue.Fair, nil)

			done := make(chan int, 1)
			go func() {
				v, _ := m.Get()
				done <- v
			}()

			Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

			a := m.NewSubqueue()
			Expect(m.PushBack(a, 7)).To(Succeed())
			Eventually(done).Should(Receive(Equal(7)))
		})
	})

	Context("unfair ordering", func() {
		It("drains the first subqueue entirely before the next", func() {
			m := multiqueue.New[string](multiqueue.Unfair, nil)
			a := m.NewSubqueue()
			b := m.NewSubqueue()

			Expect(m.PushBack(b, "b1")).To(Succeed())
			Expect(m.PushBack(a, "a1")).To(Succeed())
			Expect(m.PushBack(a, "a2")).To(Succeed())

			v1, _ := m.Get()
			v2, _ := m.Get()
			v3, _ := m.Get()
			Expect([]string{v1, v2, v3}).To(Equal([]string{"a1", "a2", "b1"}))
		})

		It("supports push-front for requeue", func() {
			m := multiqueue.New[string](multiqueue.Unfair, nil)
			a := m.NewSubqueue()

			Expect(m.PushBack(a, "first")).To(Succeed())
			Expect(m.PushBack(a, "second")).To(Succeed())
			Expect(m.PushFront(a, "requeued")).To(Succeed())

			v, _ := m.Get()
			Expect(v).To(Equal("requeued"))
		})
	})

	Context("disable and shutdown", func() {
		It("blocks Get until an element arrives", func() {
			m := multiqueue.New[int](multiqueue.Fair, nil)
			a := m.NewSubqueue()

			done := make(chan int, 1)
			go func() {
				v, _ := m.Get()
				done <- v
			}()

			Consistently(done, 100*time.Millisecond).ShouldNot(Receive())
			Expect(m.PushBack(a, 42)).To(Succeed())
			Eventually(done).Should(Receive(Equal(42)))
		})

		It("unblocks waiters with GetDisabled when remove is disabled", func() {
			m := multiqueue.New[int](multiqueue.Fair, nil)
			m.NewSubqueue()

			result := make(chan multiqueue.GetResult, 1)
			go func() {
				_, r := m.Get()
				result <- r
			}()

			time.Sleep(20 * time.Millisecond)
			m.SetGetEnabled(false)

			Eventually(result).Should(Receive(Equal(multiqueue.GetDisabled)))
		})

		It("unblocks a GetOne waiter with GetRemoved when its subqueue is removed", func() {
			m := multiqueue.New[int](multiqueue.Fair, nil)
			a := m.NewSubqueue()

			result := make(chan multiqueue.GetResult, 1)
			go func() {
				_, r := m.GetOne(a)
				result <- r
			}()

			time.Sleep(20 * time.Millisecond)
			m.RemoveSubqueue(a)

			Eventually(result).Should(Receive(Equal(multiqueue.GetRemoved)))
		})

		It("rejects Push once add is disabled, without dropping silently", func() {
			m := multiqueue.New[int](multiqueue.Fair, nil)
			a := m.NewSubqueue()
			m.SetAddEnabled(false)

			err := m.PushBack(a, 1)
			Expect(err).To(HaveOccurred())
		})

		It("never deadlocks shutdown even with a blocked getter", func() {
			m := multiqueue.New[int](multiqueue.Fair, nil)
			m.NewSubqueue()

			result := make(chan multiqueue.GetResult, 1)
			go func() {
				_, r := m.Get()
				result <- r
			}()

			time.Sleep(20 * time.Millisecond)
			m.Shutdown()

			Eventually(result).Should(Receive(Equal(multiqueue.GetShutdown)))

			err := m.PushBack(0, 1)
			Expect(err).To(HaveOccurred())
		})

		It("runs the destructor over residual elements on shutdown", func() {
			var destroyed []int
			m := multiqueue.New[int](multiqueue.Fair, func(v int) {
				destroyed = append(destroyed, v)
			})
			a := m.NewSubqueue()
			Expect(m.PushBack(a, 1)).To(Succeed())
			Expect(m.PushBack(a, 2)).To(Succeed())

			m.Shutdown()
			Expect(destroyed).To(Equal([]int{1, 2}))
		})
	})

	Context("Move", func() {
		It("atomically relocates a subqueue with its contents", func() {
			src := multiqueue.New[string](multiqueue.Fair, nil)
			dst := multiqueue.New[string](multiqueue.Fair, nil)

			id := src.NewSubqueue()
			Expect(src.PushBack(id, "x")).To(Succeed())

			Expect(multiqueue.Move(src, dst, id)).To(Succeed())

			v, r := dst.Get()
			Expect(r).To(Equal(multiqueue.GetOK))
			Expect(v).To(Equal("x"))

			err := src.PushBack(id, "y")
			Expect(err).To(HaveOccurred())
		})
	})
})
