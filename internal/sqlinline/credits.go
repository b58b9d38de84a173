package sqlinline

// QTryDebitCredit is the single atomic check-and-decrement for consuming one
// credit. The balance > 0 predicate makes concurrent debits serialize on the
// row lock; a debit that would drive the counter negative updates nothing.
const QTryDebitCredit = `--sql 14f13e2f-bef3-4f4e-a1fd-e421c50d4c55
update credit_balances
set balance = balance - 1, updated_at = now()
where user_id = $1::text and counter = $2::text and balance > 0
returning balance;
`

// QGrantCredit applies a grant exactly once per external event id. The
// journal insert wins or loses on the primary key; the balance upsert only
// runs off rows the journal actually accepted.
const QGrantCredit = `--sql 6c4b12eb-16b2-47d1-8c50-908155c47eb6
with journal as (
  insert into credit_grants(event_id, user_id, counter, amount)
  values ($1::text, $2::text, $3::text, $4::int)
  on conflict (event_id) do nothing
  returning user_id, counter, amount
),
applied as (
  insert into credit_balances(user_id, counter, balance, updated_at)
  select user_id, counter, amount, now() from journal
  on conflict (user_id, counter) do update
    set balance = credit_balances.balance + excluded.balance, updated_at = now()
  returning balance
)
select count(*) from journal;
`

const QSelectCreditBalance = `--sql 78b32586-2e69-4652-8ae1-58fde2139d5e
select coalesce(
  (select balance from credit_balances where user_id = $1::text and counter = $2::text),
  0
);
`
