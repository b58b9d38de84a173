package sqlinline

const QInsertPoster = `--sql 9006c82d-9005-4b01-9589-c95a34dda3c7
insert into posters(
  id, user_id, job_id, result_url, user_image_url,
  template_id, description, make, model, year
)
values (
  $1::uuid, $2::text, $3::text, $4::text, $5::text,
  $6::text, $7::text, $8::text, $9::text, $10::text
);
`

const QSelectUserPosters = `--sql 0f8b311f-1080-4f92-a2df-c427841496b3
select id, user_id, job_id, result_url, user_image_url,
       template_id, description, make, model, year, created_at
from posters
where user_id = $1::text
order by created_at desc
limit 100;
`
