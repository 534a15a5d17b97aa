package dictionary_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/internal/dictionary"
)

var _ = Describe("Dictionary", func() {
	var d *dictionary.Dictionary[string]

	BeforeEach(func() {
		d = dictionary.New[string]()
	})

	Context("basic insert/get/delete", func() {
		It("stores and retrieves a value", func() {
			d.Put(5, "five")
			v, ok := d.Get(5)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("five"))
		})

		It("overwrites on reinsert", func() {
			d.Put(5, "five")
			d.Put(5, "V")
			v, _ := d.Get(5)
			Expect(v).To(Equal("V"))
			Expect(d.Count()).To(Equal(1))
		})

		It("deletes entries", func() {
			d.Put(5, "five")
			d.Delete(5)
			_, ok := d.Get(5)
			Expect(ok).To(BeFalse())
			Expect(d.Count()).To(Equal(0))
		})
	})

	Context("ordering", func() {
		BeforeEach(func() {
			d.Put(10, "ten")
			d.Put(1, "one")
			d.Put(5, "five")
		})

		It("First returns the smallest key", func() {
			k, v, ok := d.First()
			Expect(ok).To(BeTrue())
			Expect(k).To(Equal(int32(1)))
			Expect(v).To(Equal("one"))
		})

		It("Last returns the largest key", func() {
			k, v, ok := d.Last()
			Expect(ok).To(BeTrue())
			Expect(k).To(Equal(int32(10)))
			Expect(v).To(Equal("ten"))
		})

		It("NextGreater finds the next key up", func() {
			k, _, ok := d.NextGreater(1)
			Expect(ok).To(BeTrue())
			Expect(k).To(Equal(int32(5)))
		})

		It("PrevLess finds the next key down", func() {
			k, _, ok := d.PrevLess(10)
			Expect(ok).To(BeTrue())
			Expect(k).To(Equal(int32(5)))
		})

		It("iterates in ascending order", func() {
			it := d.Open()
			defer it.Close()

			var got []int32
			for {
				k, _, ok := it.Next()
				if !ok {
					break
				}
				got = append(got, k)
			}
			Expect(got).To(Equal([]int32{1, 5, 10}))
		})

		It("an open iterator is a stable snapshot", func() {
			it := d.Open()
			d.Put(2, "two")
			d.Delete(10)

			var got []int32
			for {
				k, _, ok := it.Next()
				if !ok {
					break
				}
				got = append(got, k)
			}
			Expect(got).To(Equal([]int32{1, 5, 10}))
		})
	})

	Context("concurrency", func() {
		It("supports concurrent readers alongside a single writer", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(n int32) {
					defer wg.Done()
					d.Put(n, "v")
				}(int32(i))
			}
			wg.Wait()

			wg = sync.WaitGroup{}
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					it := d.Open()
					defer it.Close()
					for {
						if _, _, ok := it.Next(); !ok {
							break
						}
					}
				}()
			}
			wg.Wait()

			Expect(d.Count()).To(Equal(50))
		})
	})
})
