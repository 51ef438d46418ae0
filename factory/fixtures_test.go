package factory

import (
	"context"
	"reflect"
	"testing"

	"github.com/kbukum/beankit/descriptor"
)

type Repo struct {
	Name string
}

type Service struct {
	Repo  *Repo
	Label string
}

func NewService(repo *Repo) *Service { return &Service{Repo: repo} }

type Node struct {
	Name string
	Next *Node
}

type Settings struct {
	Host  string
	Port  int
	User  string
	Debug bool
}

type Greeter interface{ Greet() string }

type English struct{}

func (*English) Greet() string { return "hello" }

type French struct{}

func (*French) Greet() string { return "bonjour" }

type Chorus struct {
	Voices []Greeter
}

func NewChorus(voices []Greeter) *Chorus { return &Chorus{Voices: voices} }

type Endpoint struct {
	Host string
	Port int
}

func NewEndpoint(host string) *Endpoint { return &Endpoint{Host: host, Port: 80} }

func NewEndpointWithPort(host string, port int) *Endpoint {
	return &Endpoint{Host: host, Port: port}
}

func NewEndpointFromAny(host any) *Endpoint {
	s, _ := host.(string)
	return &Endpoint{Host: s, Port: 1}
}

type Conn struct {
	DSN  string
	Pool int
}

type ConnFactory struct {
	Prefix string
}

func (cf *ConnFactory) Connect(dsn string) *Conn { return &Conn{DSN: cf.Prefix + dsn} }

type ConnFactoryBean struct {
	DSN   string
	calls int
}

func (b *ConnFactoryBean) Object(context.Context) (any, error) {
	b.calls++
	return &Conn{DSN: b.DSN}, nil
}

func (b *ConnFactoryBean) ObjectType() reflect.Type { return reflect.TypeFor[*Conn]() }

func (b *ConnFactoryBean) IsSingleton() bool { return true }

type Resource struct {
	Name string
	Dep  *Resource
	log  *[]string
}

func (r *Resource) Close() error {
	*r.log = append(*r.log, r.Name)
	return nil
}

func resourceSupplier(name string, log *[]string) descriptor.Supplier {
	return func(context.Context) (any, error) {
		return &Resource{Name: name, log: log}, nil
	}
}

type hiddenRepo struct{ Name string }

type Fragile struct{ panics bool }

func (f *Fragile) Init() {
	if f.panics {
		panic("init exploded")
	}
}

type Lifecycle struct {
	Events []string
	name   string
}

func (l *Lifecycle) SetBeanName(name string) { l.name = name }

func (l *Lifecycle) AfterPropertiesSet(context.Context) error {
	l.Events = append(l.Events, "afterPropertiesSet")
	return nil
}

func (l *Lifecycle) Start() { l.Events = append(l.Events, "start") }

func (l *Lifecycle) Destroy(context.Context) error {
	l.Events = append(l.Events, "destroy")
	return nil
}

func (l *Lifecycle) Stop() error {
	l.Events = append(l.Events, "stop")
	return nil
}

type Pool struct {
	NewConn func() *Conn
	Open    func(ctx context.Context) (*Conn, error) `override:"OpenConn"`
}

type ctxKey struct{}

type Clock interface{ Now() string }

type fixedClock string

func (c fixedClock) Now() string { return string(c) }

type Scheduler struct {
	Clock  Clock
	Tenant string
}

func NewScheduler(ctx context.Context, clock Clock) *Scheduler {
	tenant, _ := ctx.Value(ctxKey{}).(string)
	return &Scheduler{Clock: clock, Tenant: tenant}
}

func mustRegister(t *testing.T, f *Factory, name string, d *descriptor.Descriptor) {
	t.Helper()
	if err := f.Register(name, d); err != nil {
		t.Fatalf("Register(%s): %v", name, err)
	}
}

func mustGet(t *testing.T, f *Factory, name string) any {
	t.Helper()
	obj, err := f.GetBean(context.Background(), name)
	if err != nil {
		t.Fatalf("GetBean(%s): %v", name, err)
	}
	return obj
}
