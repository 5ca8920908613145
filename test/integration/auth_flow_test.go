// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/gatehouse/internal/auth"
)

func newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func post(client *http.Client, path string, body map[string]string) (int, map[string]any) {
	data, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())
	resp, err := client.Post(env.server.URL+path, "application/json", bytes.NewReader(data))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	}
	return resp.StatusCode, out
}

func get(client *http.Client, path string) int {
	resp, err := client.Get(env.server.URL + path)
	Expect(err).NotTo(HaveOccurred())
	_ = resp.Body.Close()
	return resp.StatusCode
}

func errorMessage(body map[string]any) string {
	apiErr, ok := body["error"].(map[string]any)
	Expect(ok).To(BeTrue())
	msg, _ := apiErr["message"].(string)
	return msg
}

func register(client *http.Client, name, email, password string) int {
	status, _ := post(client, "/register", map[string]string{
		"name": name, "email": email, "password": password, "confirm": password,
	})
	return status
}

var _ = Describe("Account lifecycle", func() {
	BeforeEach(func() {
		env.reset()
	})

	It("registers, logs in, reaches the dashboard and logs out", func() {
		client := newClient()
		Expect(register(client, "Ann", "ann@example.com", "hunter22")).To(Equal(http.StatusCreated))

		status, body := post(client, "/login", map[string]string{"email": "ann@example.com", "password": "hunter22"})
		Expect(status).To(Equal(http.StatusOK))
		token, ok := body["token"].(string)
		Expect(ok).To(BeTrue())

		Expect(get(client, "/dashboard")).To(Equal(http.StatusOK))

		sess, err := env.sessions.Get(env.ctx, auth.HashSessionToken(token))
		Expect(err).NotTo(HaveOccurred())
		Expect(sess.Principal).To(Equal(body["user_id"]))

		status, _ = post(client, "/logout", nil)
		Expect(status).To(Equal(http.StatusNoContent))
		Expect(get(client, "/dashboard")).To(Equal(http.StatusUnauthorized))
	})

	It("stores the default location", func() {
		Expect(register(newClient(), "Bo", "bo@example.com", "pw")).To(Equal(http.StatusCreated))

		var location string
		err := env.pool.QueryRow(env.ctx, "SELECT location FROM users WHERE email = $1", "bo@example.com").Scan(&location)
		Expect(err).NotTo(HaveOccurred())
		Expect(location).To(Equal(auth.DefaultLocation))
	})

	It("admits exactly one of many concurrent registrations for an email", func() {
		const attempts = 8
		statuses := make([]int, attempts)
		var wg sync.WaitGroup
		for i := range attempts {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				statuses[i] = register(newClient(), "Cy", "Cy@Example.com", "pw")
			}()
		}
		wg.Wait()

		Expect(statuses).To(ContainElement(http.StatusCreated))
		created := 0
		for _, s := range statuses {
			if s == http.StatusCreated {
				created++
			} else {
				Expect(s).To(Equal(http.StatusConflict))
			}
		}
		Expect(created).To(Equal(1))
	})

	It("rejects a wrong password and an unknown email alike", func() {
		client := newClient()
		Expect(register(client, "Di", "di@example.com", "right")).To(Equal(http.StatusCreated))

		wrongStatus, wrongBody := post(client, "/login", map[string]string{"email": "di@example.com", "password": "wrong"})
		unknownStatus, unknownBody := post(client, "/login", map[string]string{"email": "nobody@example.com", "password": "right"})

		Expect(wrongStatus).To(Equal(http.StatusUnauthorized))
		Expect(unknownStatus).To(Equal(http.StatusUnauthorized))
		Expect(errorMessage(wrongBody)).NotTo(BeEmpty())
		Expect(errorMessage(wrongBody)).To(Equal(errorMessage(unknownBody)))
	})

	It("lets the session expire in Redis", func() {
		client := newClient()
		Expect(register(client, "Ed", "ed@example.com", "pw")).To(Equal(http.StatusCreated))
		_, body := post(client, "/login", map[string]string{"email": "ed@example.com", "password": "pw"})
		token := body["token"].(string)

		ttl, err := env.rdb.TTL(env.ctx, "it:session:"+auth.HashSessionToken(token)).Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(ttl).To(BeNumerically(">", 59*time.Minute))
		Expect(ttl).To(BeNumerically("<=", time.Hour))
	})
})
