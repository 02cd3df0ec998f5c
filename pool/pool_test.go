package pool_test

import (
	"errors"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/svdrp/client"
	"github.com/luma/svdrp/pool"
	"github.com/luma/svdrp/svdrptest"
)

var _ = Describe("Pool", func() {
	var p *pool.Pool

	BeforeEach(func() {
		p = pool.New(pool.Options{})
	})

	AfterEach(func() {
		Expect(p.Close()).To(Succeed())
	})

	Describe("Add()", func() {
		It("hands out distinct handles until the pool is full", func() {
			seen := map[pool.Handle]bool{}

			for i := 0; i < pool.Capacity; i++ {
				h, err := p.Add("10.0.0.1", 2001, false)
				Expect(err).To(Succeed())
				Expect(h).To(BeNumerically(">=", 0))
				Expect(h).To(BeNumerically("<", pool.Capacity))
				Expect(seen).NotTo(HaveKey(h))
				seen[h] = true
			}

			h, err := p.Add("10.0.0.1", 2001, false)
			Expect(errors.Is(err, pool.ErrPoolExhausted)).To(BeTrue())
			Expect(h).To(Equal(pool.None))
			Expect(p.Len()).To(Equal(pool.Capacity))

			for h := range seen {
				_, err := p.Get(h)
				Expect(err).To(Succeed())
			}
		})

		It("does not open the connection", func() {
			h, err := p.Add("10.0.0.1", 2001, true)
			Expect(err).To(Succeed())

			conn, err := p.Get(h)
			Expect(err).To(Succeed())
			Expect(conn.IsOpen()).To(BeFalse())
			Expect(conn.HasDestination("10.0.0.1", 2001)).To(BeTrue())
			Expect(conn.IsShared()).To(BeTrue())
		})
	})

	Describe("FindShared()", func() {
		It("finds a shared connection to the same destination", func() {
			h, err := p.Add("10.0.0.1", 2001, true)
			Expect(err).To(Succeed())

			Expect(p.FindShared("10.0.0.1", 2001)).To(Equal(h))
		})

		It("never returns a connection that is not shared", func() {
			_, err := p.Add("10.0.0.1", 2001, false)
			Expect(err).To(Succeed())

			Expect(p.FindShared("10.0.0.1", 2001)).To(Equal(pool.None))
		})

		It("never returns a connection to another destination", func() {
			_, err := p.Add("10.0.0.1", 2001, true)
			Expect(err).To(Succeed())

			Expect(p.FindShared("10.0.0.1", 2002)).To(Equal(pool.None))
			Expect(p.FindShared("10.0.0.2", 2001)).To(Equal(pool.None))
		})
	})

	Describe("AddRef() / DelRef()", func() {
		It("returns to the previous count", func() {
			h, err := p.Add("10.0.0.1", 2001, false)
			Expect(err).To(Succeed())
			Expect(p.AddRef(h)).To(Equal(1))

			Expect(p.AddRef(h)).To(Equal(2))
			Expect(p.DelRef(h)).To(Equal(1))
		})

		It("frees the slot exactly once when the count reaches zero", func() {
			h, err := p.Add("10.0.0.1", 2001, false)
			Expect(err).To(Succeed())
			Expect(p.AddRef(h)).To(Equal(1))

			conn, err := p.Get(h)
			Expect(err).To(Succeed())

			Expect(p.DelRef(h)).To(Equal(0))
			Expect(p.Len()).To(BeZero())
			Expect(conn.IsReleased()).To(BeTrue())

			_, err = p.DelRef(h)
			Expect(errors.Is(err, pool.ErrInvalidHandle)).To(BeTrue())

			_, err = p.Get(h)
			Expect(errors.Is(err, pool.ErrInvalidHandle)).To(BeTrue())

			again, err := p.Add("10.0.0.2", 2001, false)
			Expect(err).To(Succeed())
			Expect(again).To(Equal(h))
		})

		It("rejects handles outside the table", func() {
			for _, h := range []pool.Handle{pool.None, pool.Capacity, 100} {
				_, err := p.AddRef(h)
				Expect(errors.Is(err, pool.ErrInvalidHandle)).To(BeTrue())

				_, err = p.DelRef(h)
				Expect(errors.Is(err, pool.ErrInvalidHandle)).To(BeTrue())
			}
		})

		It("rejects handles of empty slots", func() {
			_, err := p.AddRef(3)
			Expect(errors.Is(err, pool.ErrInvalidHandle)).To(BeTrue())
		})
	})

	Describe("Reserve()", func() {
		It("shares shared connections", func() {
			a, connA, err := p.Reserve("10.0.0.1", 2001, true)
			Expect(err).To(Succeed())

			b, connB, err := p.Reserve("10.0.0.1", 2001, true)
			Expect(err).To(Succeed())

			Expect(b).To(Equal(a))
			Expect(connB).To(BeIdenticalTo(connA))
			Expect(connA.RefCount()).To(Equal(2))
		})

		It("creates a new connection when not shared", func() {
			a, _, err := p.Reserve("10.0.0.1", 2001, false)
			Expect(err).To(Succeed())

			b, _, err := p.Reserve("10.0.0.1", 2001, false)
			Expect(err).To(Succeed())

			Expect(b).NotTo(Equal(a))
			Expect(p.Len()).To(Equal(2))
		})

		It("never creates duplicate shared connections", func() {
			var wg sync.WaitGroup
			handles := make([]pool.Handle, 20)

			for i := range handles {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()

					h, _, err := p.Reserve("10.0.0.1", 2001, true)
					Expect(err).To(Succeed())
					handles[i] = h
				}(i)
			}
			wg.Wait()

			Expect(p.Len()).To(Equal(1))
			for _, h := range handles {
				Expect(h).To(Equal(handles[0]))
			}

			conn, err := p.Get(handles[0])
			Expect(err).To(Succeed())
			Expect(conn.RefCount()).To(Equal(20))
		})

		It("fails when the pool is full", func() {
			for i := 0; i < pool.Capacity; i++ {
				_, _, err := p.Reserve("10.0.0.1", 2001, false)
				Expect(err).To(Succeed())
			}

			h, conn, err := p.Reserve("10.0.0.1", 2001, false)
			Expect(errors.Is(err, pool.ErrPoolExhausted)).To(BeTrue())
			Expect(h).To(Equal(pool.None))
			Expect(conn).To(BeNil())
		})
	})

	Describe("Close()", func() {
		It("closes every connection", func() {
			server, err := svdrptest.NewServer(svdrptest.Options{})
			Expect(err).To(Succeed())
			defer server.Close()

			var conns []*client.Conn
			for i := 0; i < 3; i++ {
				_, conn, err := p.Reserve(server.IP(), server.Port(), false)
				Expect(err).To(Succeed())
				Expect(conn.Open()).To(Succeed())
				conns = append(conns, conn)
			}

			Expect(p.Close()).To(Succeed())
			Expect(p.Len()).To(BeZero())

			for _, conn := range conns {
				Expect(conn.IsReleased()).To(BeTrue())
			}
			Expect(server.Commands()).To(Equal([]string{"QUIT", "QUIT", "QUIT"}))
		})
	})
})
